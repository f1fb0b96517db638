// Package serviceinfo resolves and tracks a single DNS-SD service instance
// (RFC 6763): its host, port, priority, weight, TXT attributes and IPv4/IPv6
// addresses.
//
// An Info is fed records from the network or a shared cache through
// ApplyRecord and UpdateRecords, and can actively resolve itself with
// Request, which queries the network with exponential jittered backoff until
// the service is complete or the timeout elapses.
package serviceinfo

import (
	"context"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/records"
)

// Record model re-exported for callers of this package.
type (
	Record  = records.Record
	Update  = records.Update
	Entry   = records.Entry
	Address = records.Address
	Pointer = records.Pointer
	Service = records.Service
	Text    = records.Text
	Nsec    = records.Nsec
)

// Errors returned by this package.
var (
	ErrBadTypeInName        = errors.ErrBadTypeInName
	ErrConflictingAddresses = errors.ErrConflictingAddresses
	ErrWrongContext         = errors.ErrWrongContext
	ErrEventLoopBlocked     = errors.ErrEventLoopBlocked
	ErrMissingServer        = errors.ErrMissingServer
	ErrMissingPort          = errors.ErrMissingPort
)

// IPVersion selects address families.
type IPVersion int

const (
	// All selects IPv4 and IPv6, IPv4 first.
	All IPVersion = iota
	// V4Only selects IPv4.
	V4Only
	// V6Only selects IPv6.
	V6Only
)

func (v IPVersion) String() string {
	switch v {
	case V4Only:
		return "v4"
	case V6Only:
		return "v6"
	}
	return "all"
}

// QuestionType selects how responses to a query are requested
// (RFC 6762 §5.4).
type QuestionType int

const (
	// QuestionAuto asks for a unicast response on the first query and
	// multicast responses afterwards.
	QuestionAuto QuestionType = iota
	// QuestionMulticast (QM) asks for multicast responses.
	QuestionMulticast
	// QuestionUnicast (QU) asks for unicast responses.
	QuestionUnicast
)

// Cache is the read side of a shared record cache.
type Cache interface {
	// GetOne returns one record matching name, type and class, or nil.
	GetOne(name string, rrtype, class uint16) Record
	// GetAll returns every record matching name, type and class in the
	// order they were cached.
	GetAll(name string, rrtype, class uint16) []Record
}

// Listener receives record updates from an Engine. Callbacks run on the
// engine's dispatch loop with a context for which Engine.InLoop is true.
type Listener interface {
	UpdateRecords(ctx context.Context, c Cache, now time.Time, updates []Update)
	UpdateRecordsComplete()
}

// Engine is the socket and dispatch layer a resolution runs against.
type Engine interface {
	Cache() Cache
	Clock() clock.Clock

	Started() bool
	WaitStarted(ctx context.Context) error

	// Send transmits msg to dest, or to the multicast groups when dest is
	// the zero value.
	Send(ctx context.Context, msg *dns.Msg, dest netip.AddrPort) error

	// AddListener subscribes l to record updates, optionally limited to
	// records answering question.
	AddListener(l Listener, question *dns.Question)
	RemoveListener(l Listener)

	// InLoop reports whether ctx belongs to the engine's dispatch loop.
	InLoop(ctx context.Context) bool
}

// Result is the outcome of RequestAsync.
type Result struct {
	Complete bool
	Err      error
}
