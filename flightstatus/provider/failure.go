package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// FailureKind classifies a provider call failure. Every provider maps its
// native error surface onto exactly one kind; retryability decisions are
// made on the kind alone.
type FailureKind string

const (
	FailureTimeout     FailureKind = "TIMEOUT"
	FailureRateLimited FailureKind = "RATE_LIMITED"
	FailureAuth        FailureKind = "AUTH_ERROR"
	FailureNotFound    FailureKind = "NOT_FOUND"
	FailureUnavailable FailureKind = "SERVICE_UNAVAILABLE"
	FailureMalformed   FailureKind = "MALFORMED_RESPONSE"
)

// Transient reports whether the kind may resolve on its own: these escalate
// through retry before moving to the next provider. Permanent kinds
// (auth, not found, malformed) escalate immediately since retrying cannot
// change their outcome.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureTimeout, FailureUnavailable, FailureRateLimited:
		return true
	default:
		return false
	}
}

// Failure is the normalized error a provider call produces.
type Failure struct {
	// Provider is the name of the provider that failed.
	Provider string

	Kind FailureKind

	// RetryAfter is the provider-declared wait before the next attempt.
	// Set only for FailureRateLimited.
	RetryAfter time.Duration

	cause error
}

// NewFailure builds a Failure of the given kind. cause may be nil.
func NewFailure(providerName string, kind FailureKind, cause error) *Failure {
	return &Failure{
		Provider: providerName,
		Kind:     kind,
		cause:    cause,
	}
}

// NewRateLimited builds a FailureRateLimited carrying the provider-declared
// retry-after hint.
func NewRateLimited(providerName string, retryAfter time.Duration, cause error) *Failure {
	return &Failure{
		Provider:   providerName,
		Kind:       FailureRateLimited,
		RetryAfter: retryAfter,
		cause:      cause,
	}
}

// Error implements error.
func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("provider %s: %s: %v", f.Provider, f.Kind, f.cause)
	}

	return fmt.Sprintf("provider %s: %s", f.Provider, f.Kind)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.cause
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}

	return nil, false
}

// KindOf returns the failure kind carried by err. Context deadline and
// cancellation errors map to FailureTimeout; anything unclassified maps to
// FailureUnavailable so unknown breakage is treated as transient.
func KindOf(err error) FailureKind {
	if failure, ok := AsFailure(err); ok {
		return failure.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout
	}

	return FailureUnavailable
}

// ClassifyHTTPStatus maps an HTTP response status onto a failure kind.
func ClassifyHTTPStatus(code int) FailureKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return FailureAuth
	case code == http.StatusNotFound:
		return FailureNotFound
	case code == http.StatusRequestTimeout:
		return FailureTimeout
	case code == http.StatusTooManyRequests:
		return FailureRateLimited
	case code >= 500:
		return FailureUnavailable
	default:
		return FailureMalformed
	}
}

// FromContextError normalizes a transport-level error for providerName.
// Deadline expiry and cancellation both map to FailureTimeout; everything
// else is FailureUnavailable.
func FromContextError(providerName string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewFailure(providerName, FailureTimeout, err)
	}

	return NewFailure(providerName, FailureUnavailable, err)
}

// AttemptFailure records one provider's terminal failure kind inside an
// AggregateFailure, in attempt order.
type AttemptFailure struct {
	Provider string      `json:"provider"`
	Kind     FailureKind `json:"kind"`
}

// AggregateFailure is the terminal outcome when every candidate provider
// failed (or the overall deadline expired first) and no stale fallback was
// available.
type AggregateFailure struct {
	FlightID      string
	DepartureDate time.Time

	// Attempts lists each attempted provider's terminal failure kind in
	// attempt order. Providers skipped because their breaker was open appear
	// with FailureUnavailable.
	Attempts []AttemptFailure

	cause error
}

// NewAggregateFailure builds the terminal failure for a resolution. cause
// carries the deadline error when the overall deadline expired, else nil.
func NewAggregateFailure(flightID string, departureDate time.Time, attempts []AttemptFailure, cause error) *AggregateFailure {
	return &AggregateFailure{
		FlightID:      flightID,
		DepartureDate: departureDate,
		Attempts:      attempts,
		cause:         cause,
	}
}

// Error implements error.
func (e *AggregateFailure) Error() string {
	var sb strings.Builder

	sb.WriteString("all providers failed for ")
	sb.WriteString(e.FlightID)
	sb.WriteString(" on ")
	sb.WriteString(e.DepartureDate.Format("2006-01-02"))

	if len(e.Attempts) == 0 {
		sb.WriteString(": no providers attempted")

		return sb.String()
	}

	sb.WriteString(": ")

	for i, attempt := range e.Attempts {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(attempt.Provider)
		sb.WriteString("=")
		sb.WriteString(string(attempt.Kind))
	}

	return sb.String()
}

// Unwrap exposes the deadline error, when one terminated the resolution.
func (e *AggregateFailure) Unwrap() error {
	return e.cause
}

// Kinds returns the per-provider failure kinds keyed by provider name. When
// a provider was attempted more than once the last kind wins.
func (e *AggregateFailure) Kinds() map[string]FailureKind {
	kinds := make(map[string]FailureKind, len(e.Attempts))
	for _, attempt := range e.Attempts {
		kinds[attempt.Provider] = attempt.Kind
	}

	return kinds
}
