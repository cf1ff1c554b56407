package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError represents a stream/connection failure. Usually recovered
// by reconnect plus snapshot reconciliation.
type TransportError struct {
	Op        string // operation that failed (e.g. "dial", "read", "write")
	Err       error
	Retriable bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

// NewFatalTransportError creates a non-retriable transport error
// (auth failure, bad credentials).
func NewFatalTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: false}
}

// ValidationError rejects malformed command parameters before dispatch.
// Never retriable; no state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid parameter [" + e.Field + "]: " + e.Reason
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

var (
	// ErrRateLimited is returned when a command could not acquire a rate
	// permit within the bounded wait. Backpressure, retriable by the caller.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnknownOrder is returned when an order link id is not tracked.
	ErrUnknownOrder = errors.New("order not found")

	// ErrDuplicateOrder is returned on an insert colliding with a live
	// order link id. Store corruption; callers should treat it as fatal.
	ErrDuplicateOrder = errors.New("order already exists")

	// ErrTerminalState is returned when an event attempts to regress an
	// order that already reached a final state. Dropped, never fatal.
	ErrTerminalState = errors.New("order in terminal state")

	// ErrStaleEvent is returned when an event is older than the last one
	// applied to the same order.
	ErrStaleEvent = errors.New("stale event")

	// ErrNotConnected is returned when a command is issued with no live
	// trade channel.
	ErrNotConnected = errors.New("not connected")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
