package serviceinfo

import (
	"context"
	"time"

	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// ApplyRecord folds one record into the state and reports whether it carried
// new information. c is consulted to refresh address lists and may be nil.
//
// Expired records and records for other names are ignored. Address records
// must be owned by the current server; TXT and SRV records by the instance
// name. An SRV record that moves the service to another host reloads both
// address lists from c.
func (i *Info) ApplyRecord(c Cache, r Record, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.applyLocked(c, r, now)
}

func (i *Info) applyLocked(c Cache, r Record, now time.Time) bool {
	if r == nil {
		return false
	}
	h := r.Header()
	if h.IsExpired(now) {
		return false
	}

	if rec, ok := r.(*Address); ok && i.serverKey != "" && h.Key() == i.serverKey {
		return i.applyAddressLocked(c, rec, now)
	}

	if h.Key() != i.key {
		return false
	}

	switch rec := r.(type) {
	case *Text:
		return i.setTextLocked(rec.Raw)
	case *Service:
		previous := i.serverKey
		i.name = rec.Name
		i.key = rec.Key()
		i.setServerLocked(rec.Server)
		i.port, i.hasPort = rec.Port, true
		i.weight = rec.Weight
		i.priority = rec.Priority
		if i.serverKey != previous {
			i.ipv4.Reset(i.cachedAddressesLocked(c, dns.TypeA, now))
			i.ipv6.Reset(i.cachedAddressesLocked(c, dns.TypeAAAA, now))
		}
		return true
	}
	return false
}

func (i *Info) applyAddressLocked(c Cache, rec *Address, now time.Time) bool {
	addr, ok := parseAddress(rec.IP)
	if !ok {
		i.log.Warn("ignoring address record with malformed data", "name", rec.Name, "data", rec.IP)
		return false
	}

	if addr.Is4() {
		known := i.ipv4.Contains(addr)
		// A new address while others are tracked: drop the ones the cache has
		// since expired before adding it.
		if !known && i.ipv4.Len() > 0 && c != nil {
			i.ipv4.Reset(i.cachedAddressesLocked(c, dns.TypeA, now))
		}
		i.ipv4.InsertOrPromote(addr)
		return !known
	}

	// known is taken before the reload: an address the reload brings in
	// still counts as new, so waiters wake on the first IPv6 answer.
	known := i.ipv6.Contains(addr)
	// First IPv6 address: pick up any siblings already cached.
	if i.ipv6.Len() == 0 && c != nil {
		i.ipv6.Reset(i.cachedAddressesLocked(c, dns.TypeAAAA, now))
	}
	i.ipv6.InsertOrPromote(addr)
	return !known
}

// UpdateRecords implements Listener. Waiters are woken once the batch has
// been applied if any record changed the state.
func (i *Info) UpdateRecords(_ context.Context, c Cache, now time.Time, updates []Update) {
	updated := false
	i.mu.Lock()
	for _, u := range updates {
		if i.applyLocked(c, u.New, now) {
			updated = true
		}
	}
	i.mu.Unlock()

	if updated {
		i.waiters.NotifyAll()
	}
}

// UpdateRecordsComplete implements Listener.
func (i *Info) UpdateRecordsComplete() {}

// LoadFromCache fills the state from c without any network traffic and
// reports whether the service is complete. A zero now means the Info clock.
func (i *Info) LoadFromCache(c Cache, now time.Time) bool {
	if now.IsZero() {
		now = i.clock.Now()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	original := i.serverKey
	if srv := c.GetOne(i.name, dns.TypeSRV, protocol.ClassIN); srv != nil {
		i.applyLocked(c, srv, now)
	}
	if txt := c.GetOne(i.name, dns.TypeTXT, protocol.ClassIN); txt != nil {
		i.applyLocked(c, txt, now)
	}
	// A changed server already reloaded its addresses.
	if i.serverKey != "" && i.serverKey == original {
		for _, rrtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			for _, rec := range c.GetAll(i.serverKey, rrtype, protocol.ClassIN) {
				i.applyLocked(c, rec, now)
			}
		}
	}
	return i.completeLocked()
}
