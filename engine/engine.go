// Package engine is the network side of service resolution: it owns the
// multicast transports, parses incoming responses into the shared record
// cache and dispatches record updates to registered listeners.
//
// All listener callbacks run on a single dispatch goroutine, in the order
// packets arrive. The context passed to them is marked so that InLoop can
// tell code running on the loop apart from everything else.
package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/joshuafuller/svcinfo/internal/cache"
	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/logger"
	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/records"
	"github.com/joshuafuller/svcinfo/internal/transport"
	"github.com/joshuafuller/svcinfo/serviceinfo"
)

// inboxSize bounds packets queued between the receive loops and the
// dispatch loop.
const inboxSize = 64

type loopKey struct{}

type received struct {
	packet  []byte
	src     net.Addr
	ifIndex int
}

// Engine implements serviceinfo.Engine on top of mDNS multicast transports.
type Engine struct {
	transports []transport.Transport
	injected   bool
	ipv6       bool
	ifaces     []net.Interface

	clock      clock.Clock
	log        *slog.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	cache      *cache.Cache

	inbox   chan received
	started chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	listeners map[serviceinfo.Listener]*dns.Question
	running   bool
	closed    bool
	cancel    context.CancelFunc
	group     *errgroup.Group
}

var _ serviceinfo.Engine = (*Engine)(nil)

// New creates an engine. No socket is opened until Start.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:     clock.New(),
		cache:     cache.New(),
		metrics:   newMetrics(),
		inbox:     make(chan received, inboxSize),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[serviceinfo.Listener]*dns.Question),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.log == nil {
		e.log = logger.Logger("engine")
	}
	if e.registerer != nil {
		if err := e.metrics.register(e.registerer); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Start opens the transports (unless injected with WithTransports) and
// starts the receive and dispatch loops. The loops outlive ctx; they stop on
// Close. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.ErrEngineClosed
	}
	if e.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.injected {
		ts, err := e.openTransports()
		if err != nil {
			return err
		}
		e.transports = ts
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	for _, t := range e.transports {
		g.Go(func() error {
			return e.receiveLoop(gctx, t)
		})
	}
	g.Go(func() error {
		return e.dispatchLoop(gctx)
	})

	e.cancel = cancel
	e.group = g
	e.running = true
	close(e.started)

	e.log.Info("engine started", "transports", len(e.transports))
	return nil
}

func (e *Engine) openTransports() ([]transport.Transport, error) {
	v4, err := transport.NewUDPv4Transport(e.ifaces)
	if err != nil {
		return nil, err
	}
	ts := []transport.Transport{v4}

	if e.ipv6 {
		v6, err := transport.NewUDPv6Transport(e.ifaces)
		if err != nil {
			e.log.Warn("IPv6 multicast unavailable, continuing with IPv4 only", "err", err)
		} else {
			ts = append(ts, v6)
		}
	}
	return ts, nil
}

// Close stops the loops and closes every transport. Calling Close more than
// once is safe; later calls return nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	cancel, g := e.cancel, e.group
	transports := e.transports
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs error
	for _, t := range transports {
		errs = multierr.Append(errs, t.Close())
	}
	if g != nil {
		errs = multierr.Append(errs, g.Wait())
	}

	e.log.Info("engine closed")
	return errs
}

// Started reports whether Start has completed.
func (e *Engine) Started() bool {
	select {
	case <-e.started:
		return true
	default:
		return false
	}
}

// WaitStarted blocks until Start completes, the engine is closed or ctx is done.
func (e *Engine) WaitStarted(ctx context.Context) error {
	select {
	case <-e.started:
		return nil
	case <-e.done:
		return errors.ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cache returns the shared record cache.
func (e *Engine) Cache() serviceinfo.Cache {
	return e.cache
}

// Clock returns the engine time source.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// InLoop reports whether ctx was handed out by the dispatch loop.
func (e *Engine) InLoop(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Engine)
	return owner == e
}

// AddListener subscribes l. With a non-nil question only records answering
// it are delivered. Adding a listener again replaces its question.
func (e *Engine) AddListener(l serviceinfo.Listener, question *dns.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if question != nil {
		q := *question
		question = &q
	}
	e.listeners[l] = question
	e.metrics.listeners.Set(float64(len(e.listeners)))
}

// RemoveListener unsubscribes l. Removing an unknown listener is a no-op.
func (e *Engine) RemoveListener(l serviceinfo.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, l)
	e.metrics.listeners.Set(float64(len(e.listeners)))
}

// Send packs msg and transmits it. A zero dest sends to the multicast group
// of every transport; otherwise only transports of dest's address family
// are used. Send succeeds when at least one transport accepted the packet.
func (e *Engine) Send(ctx context.Context, msg *dns.Msg, dest netip.AddrPort) error {
	e.mu.Lock()
	closed := e.closed
	transports := e.transports
	e.mu.Unlock()
	if closed {
		return errors.ErrEngineClosed
	}

	packet, err := msg.Pack()
	if err != nil {
		return &errors.WireFormatError{Operation: "pack query", Message: "cannot encode message", Err: err}
	}
	if len(packet) > protocol.MaxMessageSize {
		e.log.Warn("query exceeds the mDNS message size", "size", len(packet))
	}

	var errs error
	sent := 0
	for _, t := range transports {
		to, ok := destinationFor(t, dest)
		if !ok {
			continue
		}
		if err := t.Send(ctx, packet, to); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		sent++
	}

	if sent == 0 {
		if errs == nil {
			return &errors.NetworkError{
				Operation: "send query",
				Err:       net.ErrClosed,
				Details:   "no transport for destination " + dest.String(),
			}
		}
		return errs
	}
	if errs != nil {
		e.log.Warn("query not sent on every transport", "err", errs)
	}
	e.metrics.queriesSent.Inc()
	return nil
}

func destinationFor(t transport.Transport, dest netip.AddrPort) (net.Addr, bool) {
	group := t.Group()
	if !dest.IsValid() {
		return group, true
	}
	groupIs4 := group.IP.To4() != nil
	if dest.Addr().Unmap().Is4() != groupIs4 {
		return nil, false
	}
	return net.UDPAddrFromAddrPort(dest), true
}

func (e *Engine) receiveLoop(ctx context.Context, t transport.Transport) error {
	for {
		packet, src, ifIndex, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			e.log.Debug("receive failed", "group", t.Group(), "err", err)
			continue
		}
		e.metrics.packetsReceived.Inc()

		select {
		case e.inbox <- received{packet: packet, src: src, ifIndex: ifIndex}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (e *Engine) dispatchLoop(ctx context.Context) error {
	loopCtx := context.WithValue(ctx, loopKey{}, e)

	ticker := e.clock.Ticker(protocol.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-e.inbox:
			e.handlePacket(loopCtx, in)
		case <-ticker.C:
			expired := e.cache.Expire(e.clock.Now())
			if len(expired) > 0 {
				e.metrics.recordsExpired.Add(float64(len(expired)))
				e.log.Debug("expired cached records", "count", len(expired))
			}
		}
	}
}

// handlePacket folds one response into the cache and notifies listeners.
// Queries and malformed packets are dropped.
func (e *Engine) handlePacket(ctx context.Context, in received) {
	msg := new(dns.Msg)
	if err := msg.Unpack(in.packet); err != nil {
		e.metrics.packetsMalformed.Inc()
		e.log.Debug("dropping malformed packet", "src", in.src, "err", err)
		return
	}
	if !msg.Response {
		return
	}

	now := e.clock.Now()
	rrs := make([]dns.RR, 0, len(msg.Answer)+len(msg.Extra))
	rrs = append(rrs, msg.Answer...)
	rrs = append(rrs, msg.Extra...)

	var updates []records.Update
	for _, rr := range rrs {
		rec, err := records.FromRR(rr, now)
		if err != nil {
			if !stderrors.Is(err, errors.ErrUnsupportedRecord) {
				e.log.Debug("skipping record", "rr", rr.Header().Name, "err", err)
			}
			continue
		}

		if rec.Header().TTL == 0 {
			// Goodbye: keep the record for one more second (RFC 6762 §10.1).
			rec = records.Restamp(rec, protocol.GoodbyeTTL, now)
		} else if rec.Header().Unique() {
			e.cache.FlushRRSet(rec, now)
		}

		old, _ := e.cache.Add(rec)
		e.metrics.recordsCached.Inc()
		updates = append(updates, records.Update{Old: old, New: rec})
	}

	if len(updates) > 0 {
		e.dispatch(ctx, now, updates)
	}
}

func (e *Engine) dispatch(ctx context.Context, now time.Time, updates []records.Update) {
	e.mu.Lock()
	type target struct {
		l serviceinfo.Listener
		q *dns.Question
	}
	targets := make([]target, 0, len(e.listeners))
	for l, q := range e.listeners {
		targets = append(targets, target{l, q})
	}
	e.mu.Unlock()

	for _, t := range targets {
		matched := updates
		if t.q != nil {
			matched = matched[:0:0]
			for _, u := range updates {
				if answers(t.q, u.New) {
					matched = append(matched, u)
				}
			}
		}
		if len(matched) == 0 {
			continue
		}
		t.l.UpdateRecords(ctx, e.cache, now, matched)
		t.l.UpdateRecordsComplete()
	}
}

// answers reports whether r answers q (RFC 6762 §6).
func answers(q *dns.Question, r records.Record) bool {
	h := r.Header()
	if h.Key() != strings.ToLower(dns.Fqdn(q.Name)) {
		return false
	}
	if q.Qtype != dns.TypeANY && q.Qtype != h.Type {
		return false
	}
	class := q.Qclass & protocol.ClassMask
	return class == dns.ClassANY || class == h.BaseClass()
}
