// Package errors defines the typed errors shared across svcinfo.
//
// Structured error types carry the failing operation so callers can use
// errors.As, while sentinel values cover conditions that need errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrBadTypeInName is returned when an instance name does not belong to
	// the given service type, or a service type name is malformed.
	ErrBadTypeInName = errors.New("bad type in name")

	// ErrConflictingAddresses is returned when both packed and textual
	// address forms are supplied at construction.
	ErrConflictingAddresses = errors.New("addresses and parsed addresses cannot be provided together")

	// ErrWrongContext is returned when a blocking request is made from the
	// engine's own dispatch loop, which would deadlock it.
	ErrWrongContext = errors.New("blocking request called from the engine loop")

	// ErrEventLoopBlocked is returned when the engine did not complete a
	// request within the caller timeout plus the loaded-system grace period.
	ErrEventLoopBlocked = errors.New("engine loop blocked")

	// ErrMissingServer is returned when a record needs a host name that has
	// not been set.
	ErrMissingServer = errors.New("server name is not set")

	// ErrMissingPort is returned when a service record is emitted without a port.
	ErrMissingPort = errors.New("port is not set")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrUnsupportedRecord is returned for resource record types the record
	// model does not track.
	ErrUnsupportedRecord = errors.New("unsupported record type")
)

// NetworkError reports a socket level failure.
type NetworkError struct {
	Operation string
	Err       error
	Details   string
}

func (e *NetworkError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("network error during %s: %v (%s)", e.Operation, e.Err, e.Details)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid caller supplied value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s %q: %s", e.Field, fmt.Sprint(e.Value), e.Message)
}

// Unwrap exposes the sentinel, if any, the validation failure belongs to.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// WireFormatError reports data that cannot be converted to or from DNS wire format.
type WireFormatError struct {
	Operation string
	Offset    int
	Message   string
	Err       error
}

func (e *WireFormatError) Error() string {
	msg := fmt.Sprintf("wire format error during %s at offset %d: %s", e.Operation, e.Offset, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WireFormatError) Unwrap() error {
	return e.Err
}
