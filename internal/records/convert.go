package records

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/errors"
)

func (e *Entry) rrHeader() dns.RR_Header {
	return dns.RR_Header{
		Name:   dns.Fqdn(e.Name),
		Rrtype: e.Type,
		Class:  e.Class,
		Ttl:    e.TTL,
	}
}

// RR implements Record.
func (r *Address) RR() (dns.RR, error) {
	switch r.Type {
	case dns.TypeA:
		if len(r.IP) != net.IPv4len {
			return nil, &errors.WireFormatError{Operation: "pack A", Message: fmt.Sprintf("address is %d bytes", len(r.IP))}
		}
		return &dns.A{Hdr: r.rrHeader(), A: net.IP(r.IP)}, nil
	case dns.TypeAAAA:
		if len(r.IP) != net.IPv6len {
			return nil, &errors.WireFormatError{Operation: "pack AAAA", Message: fmt.Sprintf("address is %d bytes", len(r.IP))}
		}
		return &dns.AAAA{Hdr: r.rrHeader(), AAAA: net.IP(r.IP)}, nil
	}
	return nil, errors.ErrUnsupportedRecord
}

// RR implements Record.
func (r *Pointer) RR() (dns.RR, error) {
	return &dns.PTR{Hdr: r.rrHeader(), Ptr: r.Alias}, nil
}

// RR implements Record.
func (r *Service) RR() (dns.RR, error) {
	return &dns.SRV{
		Hdr:      r.rrHeader(),
		Priority: r.Priority,
		Weight:   r.Weight,
		Port:     r.Port,
		Target:   r.Server,
	}, nil
}

// RR implements Record. The raw payload is unpacked as wire data so that no
// character-string escaping is involved.
func (r *Text) RR() (dns.RR, error) {
	return TextRR(r.rrHeader(), r.Raw)
}

// RR implements Record.
func (r *Nsec) RR() (dns.RR, error) {
	return &dns.NSEC{
		Hdr:        r.rrHeader(),
		NextDomain: r.NextName,
		TypeBitMap: r.Types,
	}, nil
}

// FromRR converts a parsed resource record into the record model, stamping it
// with created. Unsupported types yield errors.ErrUnsupportedRecord.
func FromRR(rr dns.RR, created time.Time) (Record, error) {
	h := rr.Header()
	switch v := rr.(type) {
	case *dns.A:
		ip := v.A.To4()
		if ip == nil {
			return nil, &errors.WireFormatError{Operation: "unpack A", Message: "not an IPv4 address"}
		}
		return &Address{Entry: NewEntry(h.Name, dns.TypeA, h.Class, h.Ttl, created), IP: []byte(ip)}, nil
	case *dns.AAAA:
		ip := v.AAAA.To16()
		if ip == nil {
			return nil, &errors.WireFormatError{Operation: "unpack AAAA", Message: "not an IPv6 address"}
		}
		return &Address{Entry: NewEntry(h.Name, dns.TypeAAAA, h.Class, h.Ttl, created), IP: []byte(ip)}, nil
	case *dns.PTR:
		return NewPointer(h.Name, h.Class, h.Ttl, v.Ptr, created), nil
	case *dns.SRV:
		return NewService(h.Name, h.Class, h.Ttl, v.Priority, v.Weight, v.Port, v.Target, created), nil
	case *dns.TXT:
		raw, err := TextPayload(v)
		if err != nil {
			return nil, err
		}
		return &Text{Entry: NewEntry(h.Name, dns.TypeTXT, h.Class, h.Ttl, created), Raw: raw}, nil
	case *dns.NSEC:
		return NewNsec(h.Name, h.Class, h.Ttl, v.NextDomain, v.TypeBitMap, created), nil
	}
	return nil, errors.ErrUnsupportedRecord
}

// TextPayload returns the RDATA of a TXT record exactly as it appears on the
// wire.
func TextPayload(t *dns.TXT) ([]byte, error) {
	// Pack a copy under the root name so the RDATA starts at a fixed offset:
	// name (1) + type (2) + class (2) + ttl (4) + rdlength (2).
	const rdataOffset = 11

	rooted := *t
	rooted.Hdr.Name = "."
	buf := make([]byte, dns.Len(&rooted)+rdataOffset)
	off, err := dns.PackRR(&rooted, buf, 0, nil, false)
	if err != nil {
		return nil, &errors.WireFormatError{Operation: "pack txt", Err: err, Message: "cannot serialise character-strings"}
	}
	if off < rdataOffset {
		return nil, &errors.WireFormatError{Operation: "pack txt", Offset: off, Message: "short record"}
	}
	raw := make([]byte, off-rdataOffset)
	copy(raw, buf[rdataOffset:off])
	return raw, nil
}

// TextRR builds a dns.TXT whose RDATA is raw, byte for byte.
func TextRR(hdr dns.RR_Header, raw []byte) (*dns.TXT, error) {
	if len(raw) > 0xffff {
		return nil, &errors.WireFormatError{Operation: "unpack txt", Message: fmt.Sprintf("payload is %d bytes", len(raw))}
	}

	if len(raw) == 0 {
		// Empty RDATA unpacks as a bare header.
		h := hdr
		h.Name = dns.Fqdn(hdr.Name)
		h.Rrtype = dns.TypeTXT
		h.Rdlength = 0
		return &dns.TXT{Hdr: h}, nil
	}

	wire := make([]byte, 11+len(raw))
	// wire[0] is the root label.
	binary.BigEndian.PutUint16(wire[1:], dns.TypeTXT)
	binary.BigEndian.PutUint16(wire[3:], hdr.Class)
	binary.BigEndian.PutUint32(wire[5:], hdr.Ttl)
	binary.BigEndian.PutUint16(wire[9:], uint16(len(raw)))
	copy(wire[11:], raw)

	rr, _, err := dns.UnpackRR(wire, 0)
	if err != nil {
		return nil, &errors.WireFormatError{Operation: "unpack txt", Err: err, Message: "malformed character-strings"}
	}
	txt, ok := rr.(*dns.TXT)
	if !ok {
		return nil, &errors.WireFormatError{Operation: "unpack txt", Message: fmt.Sprintf("unexpected %T", rr)}
	}
	txt.Hdr.Name = dns.Fqdn(hdr.Name)
	txt.Hdr.Rrtype = dns.TypeTXT
	return txt, nil
}
