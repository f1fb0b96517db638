package serviceinfo

import (
	"net/netip"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
)

const parsedAddressCacheSize = 256

// parsedAddresses memoises packed-to-netip conversions; the same handful of
// addresses is announced over and over on a link.
var parsedAddresses = mustLRU[string, netip.Addr](parsedAddressCacheSize)

func mustLRU[K comparable, V any](size int) *lru.Cache[K, V] {
	c, err := lru.New[K, V](size)
	if err != nil {
		panic(err)
	}
	return c
}

// parseAddress converts a 4 or 16 byte packed address.
func parseAddress(packed []byte) (netip.Addr, bool) {
	if len(packed) != 4 && len(packed) != 16 {
		return netip.Addr{}, false
	}
	if addr, ok := parsedAddresses.Get(string(packed)); ok {
		return addr, true
	}
	addr, ok := netip.AddrFromSlice(packed)
	if !ok {
		return netip.Addr{}, false
	}
	parsedAddresses.Add(string(packed), addr)
	return addr, true
}

// Addresses returns the IPv4 addresses in packed form.
func (i *Info) Addresses() [][]byte {
	return i.AddressesByVersion(V4Only)
}

// SetAddresses replaces both address lists with the given packed addresses.
// Malformed entries are logged and skipped.
func (i *Info) SetAddresses(addrs [][]byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.setPackedAddressesLocked(addrs)
}

func (i *Info) setPackedAddressesLocked(addrs [][]byte) {
	parsed := make([]netip.Addr, 0, len(addrs))
	for _, packed := range addrs {
		addr, ok := parseAddress(packed)
		if !ok {
			i.log.Warn("skipping malformed address", "address", packed)
			continue
		}
		parsed = append(parsed, addr)
	}
	i.resetLedgersLocked(parsed)
}

func (i *Info) setParsedAddressesLocked(addrs []string) {
	parsed := make([]netip.Addr, 0, len(addrs))
	for _, s := range addrs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			i.log.Warn("skipping malformed address", "address", s, "err", err)
			continue
		}
		parsed = append(parsed, addr.WithZone(""))
	}
	i.resetLedgersLocked(parsed)
}

func (i *Info) resetLedgersLocked(addrs []netip.Addr) {
	var v4, v6 []netip.Addr
	for _, a := range addrs {
		if a.Is4() {
			v4 = append(v4, a)
		} else {
			v6 = append(v6, a)
		}
	}
	i.ipv4.Reset(v4)
	i.ipv6.Reset(v6)
}

// IPAddressesByVersion returns the addresses of the requested families, most
// recently confirmed first, IPv4 before IPv6 for All.
func (i *Info) IPAddressesByVersion(version IPVersion) []netip.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ipAddressesLocked(version)
}

func (i *Info) ipAddressesLocked(version IPVersion) []netip.Addr {
	switch version {
	case V4Only:
		return i.ipv4.Addrs()
	case V6Only:
		return i.ipv6.Addrs()
	}
	return append(i.ipv4.Addrs(), i.ipv6.Addrs()...)
}

// AddressesByVersion returns the addresses in packed form.
func (i *Info) AddressesByVersion(version IPVersion) [][]byte {
	addrs := i.IPAddressesByVersion(version)
	out := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.AsSlice())
	}
	return out
}

// ParsedAddresses returns the addresses in textual form.
func (i *Info) ParsedAddresses(version IPVersion) []string {
	addrs := i.IPAddressesByVersion(version)
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// ParsedScopedAddresses is ParsedAddresses with link-local IPv6 addresses
// suffixed by "%" and the interface index, when it is known.
func (i *Info) ParsedScopedAddresses(version IPVersion) []string {
	addrs := i.IPAddressesByVersion(version)
	scope := i.InterfaceIndex()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Is6() && a.IsLinkLocalUnicast() && scope > 0 {
			a = a.WithZone(strconv.Itoa(scope))
		}
		out = append(out, a.String())
	}
	return out
}

// cachedAddressesLocked reads the non-expired addresses of rrtype for the
// current server from c, most recently cached first. A nil c yields none.
func (i *Info) cachedAddressesLocked(c Cache, rrtype uint16, now time.Time) []netip.Addr {
	if i.serverKey == "" || c == nil {
		return nil
	}
	cached := c.GetAll(i.serverKey, rrtype, protocol.ClassIN)
	out := make([]netip.Addr, 0, len(cached))
	for idx := len(cached) - 1; idx >= 0; idx-- {
		rec, ok := cached[idx].(*Address)
		if !ok || rec.IsExpired(now) {
			continue
		}
		addr, ok := parseAddress(rec.IP)
		if !ok {
			continue
		}
		if (rrtype == dns.TypeA) != addr.Is4() {
			continue
		}
		out = append(out, addr)
	}
	return out
}
