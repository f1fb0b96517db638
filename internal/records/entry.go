// Package records models the DNS resource records a service resolution
// consumes and produces: A/AAAA addresses, PTR, SRV, TXT and NSEC.
//
// Records are immutable once built. Each carries an Entry header with the
// owner name, type, class, TTL and the time it was created, from which
// expiry is derived (RFC 6762 §10).
package records

import (
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// Entry is the header shared by every record.
type Entry struct {
	Name    string
	Type    uint16
	Class   uint16
	TTL     uint32
	Created time.Time
}

// NewEntry builds a header. Names are stored fully qualified.
func NewEntry(name string, rrtype, class uint16, ttl uint32, created time.Time) Entry {
	return Entry{
		Name:    dns.Fqdn(name),
		Type:    rrtype,
		Class:   class,
		TTL:     ttl,
		Created: created,
	}
}

// Header returns e so embedding types satisfy Record.
func (e *Entry) Header() *Entry {
	return e
}

// Key is the case-insensitive owner name used for lookups.
func (e *Entry) Key() string {
	return strings.ToLower(e.Name)
}

// Unique reports whether the cache-flush bit is set.
func (e *Entry) Unique() bool {
	return e.Class&protocol.ClassUnique != 0
}

// BaseClass is the class with the cache-flush bit cleared.
func (e *Entry) BaseClass() uint16 {
	return e.Class & protocol.ClassMask
}

// ExpiresAt is Created + TTL.
func (e *Entry) ExpiresAt() time.Time {
	return e.Created.Add(time.Duration(e.TTL) * time.Second)
}

// IsExpired reports whether the TTL has fully elapsed at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// RemainingTTL is the whole number of seconds left at now, rounded down, or 0.
func (e *Entry) RemainingTTL(now time.Time) uint32 {
	left := e.ExpiresAt().Sub(now)
	if left <= 0 {
		return 0
	}
	return uint32(left / time.Second)
}

// TypeName returns the mnemonic for the record type (A, SRV, ...).
func (e *Entry) TypeName() string {
	if s, ok := dns.TypeToString[e.Type]; ok {
		return s
	}
	return dns.Type(e.Type).String()
}
