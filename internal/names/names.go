// Package names validates DNS-SD service type names (RFC 6763 §7) and
// derives instance names from fully qualified service names.
package names

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joshuafuller/svcinfo/internal/errors"
)

const (
	localTrailer = ".local."
	tcpTrailer   = "._tcp.local."
	udpTrailer   = "._udp.local."

	maxNameLen        = 256
	maxServiceNameLen = 15
	maxLabelLen       = 63
)

var (
	hasLetter                   = regexp.MustCompile(`[A-Za-z]`)
	onlyLettersDigitsHyphen     = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	onlyLettersDigitsHyphenUndr = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)
	asciiControl                = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

func invalid(name, format string, args ...any) error {
	return &errors.ValidationError{
		Field:   "service type",
		Value:   name,
		Message: fmt.Sprintf(format, args...),
		Err:     errors.ErrBadTypeInName,
	}
}

// ServiceTypeName returns the service type a fully qualified name belongs to,
// e.g. "_http._tcp.local." for "My Printer._http._tcp.local.".
//
// In strict mode the name must end in "._tcp.local." or "._udp.local." and the
// service label is limited to 15 bytes of letters, digits and hyphens. In
// relaxed mode underscores are accepted, the length limit is lifted and names
// ending only in ".local." are allowed.
func ServiceTypeName(name string, strict bool) (string, error) {
	if len(name) > maxNameLen {
		return "", invalid(name, "full name must be <= %d bytes", maxNameLen)
	}

	var (
		remaining   []string
		trailer     string
		hasProtocol bool
	)
	switch {
	case strings.HasSuffix(name, tcpTrailer) || strings.HasSuffix(name, udpTrailer):
		remaining = strings.Split(name[:len(name)-len(tcpTrailer)], ".")
		trailer = name[len(name)-len(tcpTrailer):]
		hasProtocol = true
	case strict:
		return "", invalid(name, "must end with %q or %q", tcpTrailer, udpTrailer)
	case strings.HasSuffix(name, localTrailer):
		remaining = strings.Split(name[:len(name)-len(localTrailer)], ".")
		trailer = localTrailer[1:]
	default:
		return "", invalid(name, "must end with %q", localTrailer)
	}

	serviceName := ""
	if strict || hasProtocol {
		serviceName = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		if serviceName == "" {
			return "", invalid(name, "no service name found")
		}
		if len(remaining) == 1 && remaining[0] == "" {
			return "", invalid(name, "must not start with '.'")
		}
		if serviceName[0] != '_' {
			return "", invalid(name, "service name %q must start with '_'", serviceName)
		}

		label := serviceName[1:]
		if strict && len(label) > maxServiceNameLen {
			return "", invalid(name, "service name %q must be <= %d bytes", label, maxServiceNameLen)
		}
		if strings.Contains(label, "--") {
			return "", invalid(name, "service name %q must not contain '--'", label)
		}
		if label == "" || label[0] == '-' || label[len(label)-1] == '-' {
			return "", invalid(name, "service name %q must not start or end with '-'", label)
		}
		if !hasLetter.MatchString(label) {
			return "", invalid(name, "service name %q must contain at least one letter", label)
		}
		allowed := onlyLettersDigitsHyphenUndr
		if strict {
			allowed = onlyLettersDigitsHyphen
		}
		if !allowed.MatchString(label) {
			return "", invalid(name, "service name %q contains characters outside A-Z, a-z, 0-9 and '-'", label)
		}
	}

	if len(remaining) > 0 && remaining[len(remaining)-1] == "_sub" {
		remaining = remaining[:len(remaining)-1]
		if len(remaining) == 0 || remaining[0] == "" {
			return "", invalid(name, "_sub requires a subtype name")
		}
	}

	if len(remaining) > 0 {
		instance := strings.Join(remaining, ".")
		if len(instance) > maxLabelLen {
			return "", invalid(name, "instance name %q is longer than %d bytes", instance, maxLabelLen)
		}
		if asciiControl.MatchString(instance) {
			return "", invalid(name, "control characters 0x00-0x1F and 0x7F are not allowed in %q", instance)
		}
	}

	return serviceName + trailer, nil
}

// InstanceName strips ".serviceType" from a fully qualified service name.
// The name is returned unchanged when it does not carry that suffix.
func InstanceName(name, serviceType string) string {
	suffix := "." + serviceType
	if len(name) > len(suffix) && strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix)) {
		return name[:len(name)-len(suffix)]
	}
	return name
}
