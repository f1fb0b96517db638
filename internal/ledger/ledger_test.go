package ledger

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	a = netip.MustParseAddr("10.0.0.1")
	b = netip.MustParseAddr("10.0.0.2")
	c = netip.MustParseAddr("10.0.0.3")
)

func TestInsertOrPromote(t *testing.T) {
	l := New()

	assert.True(t, l.InsertOrPromote(a))
	assert.True(t, l.InsertOrPromote(b))
	assert.Equal(t, []netip.Addr{b, a}, l.Addrs())

	// Promotion of a non-head element.
	assert.False(t, l.InsertOrPromote(a))
	assert.Equal(t, []netip.Addr{a, b}, l.Addrs())

	// Already at the head.
	assert.False(t, l.InsertOrPromote(a))
	assert.Equal(t, []netip.Addr{a, b}, l.Addrs())
}

func TestInsertOrPromote_FromTail(t *testing.T) {
	l := New(a, b, c)

	assert.False(t, l.InsertOrPromote(c))
	assert.Equal(t, []netip.Addr{c, a, b}, l.Addrs())
}

func TestReset_Dedup(t *testing.T) {
	l := New(a, b, a, c, b)
	assert.Equal(t, []netip.Addr{a, b, c}, l.Addrs())
	assert.Equal(t, 3, l.Len())

	l.Reset(nil)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Contains(a))
}

func TestAddrs_IsCopy(t *testing.T) {
	l := New(a, b)
	snap := l.Addrs()
	snap[0] = c

	assert.True(t, l.Contains(a))
	assert.False(t, l.Contains(c))
}
