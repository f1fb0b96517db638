// Package logger provides per-subsystem slog loggers.
//
// Usage:
//
//	var log = logger.Logger("engine")
//	log.Debug("packet received", "bytes", n, "ifindex", ifIndex)
//
// Levels come from SVCINFO_LOG_LEVEL (see ConfigFromEnv) and can be changed
// at runtime with SetLevel.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	loggers sync.Map // subsystem -> *slog.Logger
	levels  sync.Map // subsystem -> *slog.LevelVar

	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// SetOutput redirects every logger, including ones already created.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Logger returns the logger for subsystem, creating it on first use.
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	level := new(slog.LevelVar)
	level.Set(cfg.LevelFor(subsystem))

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		handler = slog.NewTextHandler(dynamicWriter{}, opts)
	}

	l := slog.New(handler).With("subsystem", subsystem)
	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		levels.Store(subsystem, level)
	}
	return actual.(*slog.Logger)
}

// SetLevel changes the level of an existing subsystem logger.
func SetLevel(subsystem string, level slog.Level) {
	if v, ok := levels.Load(subsystem); ok {
		v.(*slog.LevelVar).Set(level)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
