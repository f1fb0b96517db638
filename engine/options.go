package engine

import (
	"log/slog"
	"net"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/transport"
)

// Option is a functional option for configuring an Engine.
//
// Options are applied by New before any socket is opened.
//
// Example:
//
//	eng, err := engine.New(
//	    engine.WithIPv6(true),
//	    engine.WithInterfaces(ifaces),
//	)
type Option func(*Engine) error

// WithTransports makes the engine use ts instead of opening multicast
// sockets on Start. The engine takes ownership and closes them on Close.
func WithTransports(ts ...transport.Transport) Option {
	return func(e *Engine) error {
		if len(ts) == 0 {
			return &errors.ValidationError{Field: "transports", Value: ts, Message: "at least one transport is required"}
		}
		e.transports = append([]transport.Transport(nil), ts...)
		e.injected = true
		return nil
	}
}

// WithIPv6 additionally listens on the IPv6 mDNS group. If the IPv6 socket
// cannot be opened the engine logs a warning and continues on IPv4 only.
func WithIPv6(enabled bool) Option {
	return func(e *Engine) error {
		e.ipv6 = enabled
		return nil
	}
}

// WithInterfaces limits multicast group membership to ifaces. By default
// every multicast-capable interface that is up is used.
func WithInterfaces(ifaces []net.Interface) Option {
	return func(e *Engine) error {
		e.ifaces = ifaces
		return nil
	}
}

// WithClock replaces the wall clock. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(e *Engine) error {
		if c == nil {
			return &errors.ValidationError{Field: "clock", Value: c, Message: "must not be nil"}
		}
		e.clock = c
		return nil
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// WithRegisterer registers the engine metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		e.registerer = reg
		return nil
	}
}
