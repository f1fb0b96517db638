// Package ledger keeps the ordered address list of one address family for a
// service: most recently confirmed first, no duplicates.
//
// A Ledger is not safe for concurrent use; its owner serialises access.
package ledger

import (
	"net/netip"
	"slices"
)

// Ledger is a LIFO list of unique addresses.
type Ledger struct {
	addrs []netip.Addr
}

// New returns a ledger holding addrs in the given order, duplicates dropped.
func New(addrs ...netip.Addr) *Ledger {
	l := &Ledger{}
	l.Reset(addrs)
	return l
}

// InsertOrPromote moves addr to the head of the list. It reports true only
// when addr was not already present.
func (l *Ledger) InsertOrPromote(addr netip.Addr) bool {
	i := slices.Index(l.addrs, addr)
	switch {
	case i == 0:
		return false
	case i > 0:
		copy(l.addrs[1:i+1], l.addrs[:i])
		l.addrs[0] = addr
		return false
	}
	l.addrs = slices.Insert(l.addrs, 0, addr)
	return true
}

// Reset replaces the contents with addrs, keeping the first occurrence of each.
func (l *Ledger) Reset(addrs []netip.Addr) {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	l.addrs = out
}

// Contains reports whether addr is tracked.
func (l *Ledger) Contains(addr netip.Addr) bool {
	return slices.Contains(l.addrs, addr)
}

// Addrs returns a copy of the list, head first.
func (l *Ledger) Addrs() []netip.Addr {
	return slices.Clone(l.addrs)
}

// Len returns the number of tracked addresses.
func (l *Ledger) Len() int {
	return len(l.addrs)
}
