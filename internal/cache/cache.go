// Package cache is the shared record cache fed by the engine and read by
// service resolutions.
//
// Records are indexed by lowercased owner name in a sharded concurrent map.
// Each name holds an insertion-ordered slice that is replaced, never
// modified, on write, so readers work on a stable snapshot without locking.
package cache

import (
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/records"
)

// Cache stores records received from the network. It is safe for concurrent use.
type Cache struct {
	store cmap.ConcurrentMap[string, []records.Record]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{store: cmap.New[[]records.Record]()}
}

// Add stores r. A record with the same identity is replaced in place and
// returned as old; isNew is true when no such record existed.
func (c *Cache) Add(r records.Record) (old records.Record, isNew bool) {
	id := records.Identity(r)
	c.store.Upsert(r.Header().Key(), nil, func(exist bool, current, _ []records.Record) []records.Record {
		next := make([]records.Record, len(current), len(current)+1)
		copy(next, current)
		for i, existing := range next {
			if records.Identity(existing) == id {
				old = existing
				next[i] = r
				return next
			}
		}
		return append(next, r)
	})
	return old, old == nil
}

// FlushRRSet applies the cache-flush rule of RFC 6762 §10.2 for a unique
// record r: every other member of its RRset created more than a second
// before now is set to expire one second from now. The affected records are
// returned in their new form.
func (c *Cache) FlushRRSet(r records.Record, now time.Time) []records.Record {
	h := r.Header()
	if !h.Unique() {
		return nil
	}
	id := records.Identity(r)

	var flushed []records.Record
	c.store.Upsert(h.Key(), nil, func(exist bool, current, _ []records.Record) []records.Record {
		if !exist {
			return nil
		}
		next := make([]records.Record, len(current))
		copy(next, current)
		for i, existing := range next {
			eh := existing.Header()
			if eh.Type != h.Type || eh.BaseClass() != h.BaseClass() || records.Identity(existing) == id {
				continue
			}
			if now.Sub(eh.Created) <= protocol.FlushGrace || eh.RemainingTTL(now) <= protocol.GoodbyeTTL {
				continue
			}
			next[i] = records.Restamp(existing, protocol.GoodbyeTTL, now)
			flushed = append(flushed, next[i])
		}
		return next
	})
	return flushed
}

// GetOne returns the most recently added record matching name, type and
// class, or nil. The cache-flush bit is ignored when comparing classes.
func (c *Cache) GetOne(name string, rrtype, class uint16) records.Record {
	matches := c.GetAll(name, rrtype, class)
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1]
}

// GetAll returns every record matching name, type and class in insertion
// order. Expired records are included; callers decide what to do with them.
func (c *Cache) GetAll(name string, rrtype, class uint16) []records.Record {
	entries, ok := c.store.Get(strings.ToLower(name))
	if !ok {
		return nil
	}
	class &= protocol.ClassMask

	var out []records.Record
	for _, r := range entries {
		h := r.Header()
		if h.Type == rrtype && h.BaseClass() == class {
			out = append(out, r)
		}
	}
	return out
}

// Entries returns every record stored under name.
func (c *Cache) Entries(name string) []records.Record {
	entries, _ := c.store.Get(strings.ToLower(name))
	out := make([]records.Record, len(entries))
	copy(out, entries)
	return out
}

// Remove drops the record with r's identity.
func (c *Cache) Remove(r records.Record) {
	id := records.Identity(r)
	key := r.Header().Key()
	c.filter(key, func(existing records.Record) bool {
		return records.Identity(existing) != id
	})
}

// Expire removes every record whose TTL has elapsed at now and returns them.
func (c *Cache) Expire(now time.Time) []records.Record {
	var expired []records.Record
	for _, key := range c.store.Keys() {
		c.filter(key, func(r records.Record) bool {
			if r.Header().IsExpired(now) {
				expired = append(expired, r)
				return false
			}
			return true
		})
	}
	return expired
}

// filter keeps the records under key for which keep is true and drops the
// name once nothing is left.
func (c *Cache) filter(key string, keep func(records.Record) bool) {
	c.store.Upsert(key, nil, func(exist bool, current, _ []records.Record) []records.Record {
		if !exist {
			return nil
		}
		next := make([]records.Record, 0, len(current))
		for _, r := range current {
			if keep(r) {
				next = append(next, r)
			}
		}
		return next
	})
	c.store.RemoveCb(key, func(_ string, v []records.Record, exists bool) bool {
		return exists && len(v) == 0
	})
}

// Len returns the number of stored records.
func (c *Cache) Len() int {
	n := 0
	for item := range c.store.IterBuffered() {
		n += len(item.Val)
	}
	return n
}
