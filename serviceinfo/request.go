package serviceinfo

import (
	"context"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/joshuafuller/svcinfo/internal/protocol"
	"github.com/joshuafuller/svcinfo/internal/waiters"
)

type requestSettings struct {
	questionType QuestionType
	addr         netip.Addr
	port         uint16
}

// RequestOption adjusts a Request.
type RequestOption func(*requestSettings)

// WithQuestionType forces every query to ask for unicast (QuestionUnicast)
// or multicast (QuestionMulticast) responses. By default the first query
// asks for a unicast response and later ones for multicast.
func WithQuestionType(qt QuestionType) RequestOption {
	return func(s *requestSettings) {
		s.questionType = qt
	}
}

// WithDestination sends queries to addr instead of the multicast group.
func WithDestination(addr netip.Addr) RequestOption {
	return func(s *requestSettings) {
		s.addr = addr
	}
}

// WithDestinationPort sets the port used with WithDestination. It defaults
// to 5353.
func WithDestinationPort(port uint16) RequestOption {
	return func(s *requestSettings) {
		s.port = port
	}
}

func (s requestSettings) destination() netip.AddrPort {
	if !s.addr.IsValid() {
		return netip.AddrPort{}
	}
	port := s.port
	if port == 0 {
		port = protocol.Port
	}
	return netip.AddrPortFrom(s.addr, port)
}

// maxQueryInterval caps the retransmission interval before jitter.
const maxQueryInterval = time.Hour

// newBackOff returns the retransmission schedule on clk: ListenerTime, then
// doubling after every query. Jitter is added separately.
func newBackOff(clk clock.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     protocol.ListenerTime,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxQueryInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()
	return b
}

// jitter returns the random spread added to each retransmission.
func jitter() time.Duration {
	span := int64(protocol.JitterMax-protocol.JitterMin) / int64(time.Millisecond)
	return protocol.JitterMin + time.Duration(rand.Int64N(span+1))*time.Millisecond
}

// Request resolves the service, blocking until it is complete, timeout
// elapses or ctx is done. It returns true when the service is complete.
//
// Request must not be called from an engine listener callback; it returns
// ErrWrongContext there without side effects. If the engine does not finish
// the resolution within timeout plus a grace period, ErrEventLoopBlocked is
// returned.
func (i *Info) Request(ctx context.Context, eng Engine, timeout time.Duration, opts ...RequestOption) (bool, error) {
	if eng.InLoop(ctx) {
		return false, ErrWrongContext
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocked := eng.Clock().Timer(timeout + protocol.LoadedSystemTimeout)
	defer blocked.Stop()

	select {
	case res := <-i.RequestAsync(ctx, eng, timeout, opts...):
		return res.Complete, res.Err
	case <-blocked.C:
		return false, ErrEventLoopBlocked
	}
}

// RequestAsync starts a resolution on its own goroutine and returns a channel
// that receives exactly one Result. It may be called from an engine listener.
//
// A service already complete from the cache resolves without traffic.
// Otherwise queries are sent with a 200 ms initial interval that doubles
// after every query, plus 20-120 ms of jitter, until the service is complete
// or timeout elapses. Timing out is not an error: the Result then has
// Complete false and a nil Err. Cancelling ctx yields ctx.Err().
func (i *Info) RequestAsync(ctx context.Context, eng Engine, timeout time.Duration, opts ...RequestOption) <-chan Result {
	var s requestSettings
	for _, opt := range opts {
		opt(&s)
	}

	out := make(chan Result, 1)
	go func() {
		complete, err := i.resolve(ctx, eng, timeout, s)
		out <- Result{Complete: complete, Err: err}
	}()
	return out
}

func (i *Info) resolve(ctx context.Context, eng Engine, timeout time.Duration, s requestSettings) (bool, error) {
	if !eng.Started() {
		if err := eng.WaitStarted(ctx); err != nil {
			return false, err
		}
	}

	clk := eng.Clock()
	c := eng.Cache()
	now := clk.Now()
	if i.LoadFromCache(c, now) {
		return true, nil
	}

	eng.AddListener(i, nil)
	defer eng.RemoveListener(i)

	// Records cached between the first load and AddListener reach neither
	// path, so load again now that updates are delivered.
	if i.LoadFromCache(c, now) {
		return true, nil
	}

	deadline := now.Add(timeout)
	next := now
	schedule := newBackOff(clk)
	first := true
	dest := s.destination()

	for {
		// Register before checking so a notification between the check and
		// the wait is not lost.
		w := i.waiters.Register()

		if i.Complete() {
			i.waiters.Remove(w)
			return true, nil
		}
		if !now.Before(deadline) {
			i.waiters.Remove(w)
			return false, nil
		}

		if !now.Before(next) {
			qt := s.questionType
			if qt == QuestionAuto {
				qt = QuestionMulticast
				if first {
					qt = QuestionUnicast
				}
			}
			first = false

			msg := i.GenerateRequestQuery(c, now, qt)
			if len(msg.Question) == 0 {
				i.waiters.Remove(w)
				return i.LoadFromCache(c, now), nil
			}
			if err := eng.Send(ctx, msg, dest); err != nil {
				if ctx.Err() != nil {
					i.waiters.Remove(w)
					return false, ctx.Err()
				}
				i.log.Warn("query send failed", "err", err)
			} else {
				i.log.Debug("query sent", "questions", len(msg.Question), "known_answers", len(msg.Answer), "unicast", qt == QuestionUnicast)
			}

			next = now.Add(schedule.NextBackOff() + jitter())
		}

		wake := next
		if deadline.Before(wake) {
			wake = deadline
		}
		if err := i.wait(ctx, eng, w, wake.Sub(now)); err != nil {
			return false, err
		}
		now = clk.Now()
	}
}

// wait blocks until w fires, d elapses on the engine clock or ctx is done,
// and always removes w.
func (i *Info) wait(ctx context.Context, eng Engine, w *waiters.Waiter, d time.Duration) error {
	defer i.waiters.Remove(w)

	timer := eng.Clock().Timer(d)
	defer timer.Stop()

	select {
	case <-w.Done():
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
