//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly) && !windows

package transport

func setSocketOptions(uintptr) error {
	return nil
}
