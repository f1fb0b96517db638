package records

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Record is implemented by every concrete record type.
type Record interface {
	Header() *Entry

	// RR converts the record to its miekg/dns form for serialization.
	RR() (dns.RR, error)

	// rdataKey identifies the record data for equality, TTL excluded.
	rdataKey() string
}

// Update pairs a record with the cached record it replaced, if any.
type Update struct {
	Old Record
	New Record
}

// Address is an A or AAAA record holding the packed address.
type Address struct {
	Entry
	IP []byte
}

// NewAddress builds an address record. The type follows the address length.
func NewAddress(name string, class uint16, ttl uint32, ip []byte, created time.Time) *Address {
	rrtype := dns.TypeA
	if len(ip) == 16 {
		rrtype = dns.TypeAAAA
	}
	return &Address{
		Entry: NewEntry(name, rrtype, class, ttl, created),
		IP:    bytes.Clone(ip),
	}
}

// Addr returns the address as a netip.Addr.
func (r *Address) Addr() (netip.Addr, bool) {
	return netip.AddrFromSlice(r.IP)
}

func (r *Address) rdataKey() string {
	return hex.EncodeToString(r.IP)
}

func (r *Address) String() string {
	addr, ok := r.Addr()
	if !ok {
		return fmt.Sprintf("%s %s invalid(%x)", r.Name, r.TypeName(), r.IP)
	}
	return fmt.Sprintf("%s %d %s %s", r.Name, r.TTL, r.TypeName(), addr)
}

// Pointer is a PTR record.
type Pointer struct {
	Entry
	Alias string
}

// NewPointer builds a PTR record.
func NewPointer(name string, class uint16, ttl uint32, alias string, created time.Time) *Pointer {
	return &Pointer{
		Entry: NewEntry(name, dns.TypePTR, class, ttl, created),
		Alias: dns.Fqdn(alias),
	}
}

// AliasKey is the lowercased alias.
func (r *Pointer) AliasKey() string {
	return strings.ToLower(r.Alias)
}

func (r *Pointer) rdataKey() string {
	return r.AliasKey()
}

// Service is an SRV record.
type Service struct {
	Entry
	Priority uint16
	Weight   uint16
	Port     uint16
	Server   string
}

// NewService builds an SRV record.
func NewService(name string, class uint16, ttl uint32, priority, weight, port uint16, server string, created time.Time) *Service {
	return &Service{
		Entry:    NewEntry(name, dns.TypeSRV, class, ttl, created),
		Priority: priority,
		Weight:   weight,
		Port:     port,
		Server:   dns.Fqdn(server),
	}
}

// ServerKey is the lowercased target host.
func (r *Service) ServerKey() string {
	return strings.ToLower(r.Server)
}

func (r *Service) rdataKey() string {
	return fmt.Sprintf("%d %d %d %s", r.Priority, r.Weight, r.Port, r.ServerKey())
}

// Text is a TXT record holding the raw payload.
type Text struct {
	Entry
	Raw []byte
}

// NewText builds a TXT record.
func NewText(name string, class uint16, ttl uint32, raw []byte, created time.Time) *Text {
	return &Text{
		Entry: NewEntry(name, dns.TypeTXT, class, ttl, created),
		Raw:   bytes.Clone(raw),
	}
}

func (r *Text) rdataKey() string {
	return hex.EncodeToString(r.Raw)
}

// Nsec is a negative response asserting that Types are the only record types
// owned by Name (RFC 6762 §6.1).
type Nsec struct {
	Entry
	NextName string
	Types    []uint16
}

// NewNsec builds an NSEC record. Types are kept sorted.
func NewNsec(name string, class uint16, ttl uint32, next string, types []uint16, created time.Time) *Nsec {
	sorted := slices.Clone(types)
	slices.Sort(sorted)
	return &Nsec{
		Entry:    NewEntry(name, dns.TypeNSEC, class, ttl, created),
		NextName: dns.Fqdn(next),
		Types:    slices.Compact(sorted),
	}
}

func (r *Nsec) rdataKey() string {
	return fmt.Sprintf("%s %v", strings.ToLower(r.NextName), r.Types)
}

// Identity is the equality key of a record: owner, type, class and data. Two
// records with the same identity differ at most in TTL and creation time.
func Identity(r Record) string {
	h := r.Header()
	return fmt.Sprintf("%s|%d|%d|%s", h.Key(), h.Type, h.BaseClass(), r.rdataKey())
}

// Equal reports whether two records have the same identity.
func Equal(a, b Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	return Identity(a) == Identity(b)
}

// Restamp returns a copy of r with a new TTL and creation time.
func Restamp(r Record, ttl uint32, created time.Time) Record {
	switch v := r.(type) {
	case *Address:
		c := *v
		c.TTL, c.Created = ttl, created
		return &c
	case *Pointer:
		c := *v
		c.TTL, c.Created = ttl, created
		return &c
	case *Service:
		c := *v
		c.TTL, c.Created = ttl, created
		return &c
	case *Text:
		c := *v
		c.TTL, c.Created = ttl, created
		return &c
	case *Nsec:
		c := *v
		c.TTL, c.Created = ttl, created
		return &c
	}
	return r
}
