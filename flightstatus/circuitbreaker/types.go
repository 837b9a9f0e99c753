package circuitbreaker

import "errors"

// State represents the current state of a circuit breaker.
type State string

const (
	// StateClosed allows all requests through (normal operation).
	StateClosed State = "closed"

	// StateOpen rejects all requests immediately (failing fast).
	StateOpen State = "open"

	// StateHalfOpen allows a single trial request to test recovery.
	StateHalfOpen State = "half-open"

	// StateUnknown is reported for breakers that do not exist.
	StateUnknown State = "unknown"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

var (
	// ErrOpenState is returned by Acquire when the breaker is open, or when
	// the half-open trial slot is already taken by another caller.
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrInvalidConfig is returned when a breaker configuration fails validation.
	ErrInvalidConfig = errors.New("invalid circuit breaker config")

	// ErrNilManager is returned when a nil manager is used.
	ErrNilManager = errors.New("circuit breaker manager is nil")
)

// Counts holds the cumulative statistics of a circuit breaker.
//
// Requests counts admitted permits, Rejected counts fail-fast refusals.
// Consecutive counters reset whenever the opposite outcome is recorded and
// when the breaker resets to closed.
type Counts struct {
	Requests             uint64 `json:"requests"`
	TotalSuccesses       uint64 `json:"total_successes"`
	TotalFailures        uint64 `json:"total_failures"`
	ConsecutiveSuccesses uint64 `json:"consecutive_successes"`
	ConsecutiveFailures  uint64 `json:"consecutive_failures"`
	Rejected             uint64 `json:"rejected"`
}

// StateChangeListener receives circuit breaker state change notifications.
//
// Listeners are invoked asynchronously and must not block; a panicking
// listener is recovered and logged without affecting the breaker.
type StateChangeListener interface {
	OnStateChange(name string, from, to State)
}

// StateChangeListenerFunc adapts a plain function to the
// StateChangeListener interface.
type StateChangeListenerFunc func(name string, from, to State)

// OnStateChange calls f(name, from, to).
func (f StateChangeListenerFunc) OnStateChange(name string, from, to State) {
	f(name, from, to)
}
