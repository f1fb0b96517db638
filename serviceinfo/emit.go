package serviceinfo

import (
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/records"
)

type recordSettings struct {
	ttl     uint32
	hasTTL  bool
	created time.Time
}

// RecordOption adjusts an emitted record.
type RecordOption func(*recordSettings)

// WithTTL overrides the TTL of emitted records.
func WithTTL(ttl uint32) RecordOption {
	return func(s *recordSettings) {
		s.ttl, s.hasTTL = ttl, true
	}
}

// CreatedAt stamps emitted records with t instead of the current time.
func CreatedAt(t time.Time) RecordOption {
	return func(s *recordSettings) {
		s.created = t
	}
}

func (i *Info) recordSettings(opts []RecordOption) recordSettings {
	var s recordSettings
	for _, opt := range opts {
		opt(&s)
	}
	if s.created.IsZero() {
		s.created = i.clock.Now()
	}
	return s
}

func (s recordSettings) ttlOr(def uint32) uint32 {
	if s.hasTTL {
		return s.ttl
	}
	return def
}

// AddressRecords returns one A or AAAA record per address of the requested
// families, owned by the server (or the instance name when no server is set).
func (i *Info) AddressRecords(version IPVersion, opts ...RecordOption) []*Address {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addressRecordsLocked(version, s)
}

func (i *Info) addressRecordsLocked(version IPVersion, s recordSettings) []*Address {
	owner := i.server
	if owner == "" {
		owner = i.name
	}
	addrs := i.ipAddressesLocked(version)
	out := make([]*Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, records.NewAddress(owner, protocol.ClassINUnique, s.ttlOr(i.hostTTL), a.AsSlice(), s.created))
	}
	return out
}

// PointerRecord returns the shared PTR record from the service type to the instance.
func (i *Info) PointerRecord(opts ...RecordOption) *Pointer {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()
	return records.NewPointer(i.serviceType, protocol.ClassIN, s.ttlOr(i.otherTTL), i.name, s.created)
}

// ServiceRecord returns the SRV record. It fails with ErrMissingPort when no
// port is known.
func (i *Info) ServiceRecord(opts ...RecordOption) (*Service, error) {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.hasPort {
		return nil, ErrMissingPort
	}
	target := i.server
	if target == "" {
		target = i.name
	}
	return records.NewService(i.name, protocol.ClassINUnique, s.ttlOr(i.hostTTL), i.priority, i.weight, i.port, target, s.created), nil
}

// TextRecord returns the TXT record.
func (i *Info) TextRecord(opts ...RecordOption) *Text {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()
	return records.NewText(i.name, protocol.ClassINUnique, s.ttlOr(i.otherTTL), i.text, s.created)
}

// NsecRecord returns a negative response stating that the instance owns none
// of the missing types (RFC 6762 §6.1). It fails with ErrMissingServer when
// no server is set.
func (i *Info) NsecRecord(missing []uint16, opts ...RecordOption) (*Nsec, error) {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.nsecLocked(missing, s)
}

func (i *Info) nsecLocked(missing []uint16, s recordSettings) (*Nsec, error) {
	if i.server == "" {
		return nil, ErrMissingServer
	}
	return records.NewNsec(i.name, protocol.ClassINUnique, s.ttlOr(i.hostTTL), i.name, missing, s.created), nil
}

// AddressAndNsecRecords returns every address record plus, when IPv4 or IPv6
// has no address, one NSEC record naming the missing types. The result has no
// duplicates.
func (i *Info) AddressAndNsecRecords(opts ...RecordOption) ([]Record, error) {
	s := i.recordSettings(opts)
	i.mu.Lock()
	defer i.mu.Unlock()

	set := records.NewRecordSet()
	missing := map[uint16]bool{dns.TypeA: true, dns.TypeAAAA: true}
	for _, rec := range i.addressRecordsLocked(All, s) {
		delete(missing, rec.Type)
		set.Add(rec)
	}
	if len(missing) > 0 {
		types := make([]uint16, 0, len(missing))
		for t := range missing {
			types = append(types, t)
		}
		nsec, err := i.nsecLocked(types, s)
		if err != nil {
			return nil, err
		}
		set.Add(nsec)
	}
	return set.Records(), nil
}
