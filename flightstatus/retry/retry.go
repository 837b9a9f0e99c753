package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/backoff"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("retry: max attempts must be positive")
	// ErrInvalidBaseDelay is returned when BaseDelay is not positive.
	ErrInvalidBaseDelay = errors.New("retry: base delay must be positive")
	// ErrInvalidMaxDelay is returned when MaxDelay is below BaseDelay.
	ErrInvalidMaxDelay = errors.New("retry: max delay must be >= base delay")
)

// Policy bounds the attempts made against one provider within a single
// resolution.
type Policy struct {
	// MaxAttempts is the TOTAL number of calls allowed per provider,
	// including the first one. 2 means one retry.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, including rate-limit waits.
	MaxDelay time.Duration
}

// DefaultPolicy returns the standard attempt budget: two total attempts,
// 250ms base delay, 5s delay cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Validate checks the policy for structural problems.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, p.MaxAttempts)
	}

	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidBaseDelay, p.BaseDelay)
	}

	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w: got %s < %s", ErrInvalidMaxDelay, p.MaxDelay, p.BaseDelay)
	}

	return nil
}

// Decision is the policy's verdict for one failed attempt.
type Decision struct {
	// Retry is true when the caller should try the same provider again.
	Retry bool

	// Delay is how long to wait before the next attempt. Zero when Retry
	// is false.
	Delay time.Duration
}

// Decide evaluates a failed attempt. attempt is the zero-based index of the
// attempt that just failed; retryAfter is the provider-declared wait for
// rate-limited failures (zero when the provider declared none).
//
// Timeout and unavailable failures retry while attempts remain, delayed by
// BaseDelay * 2^attempt capped at MaxDelay. A rate-limited failure earns one
// retry, waiting the declared retryAfter (capped); rate limiting after the
// first attempt escalates, as do auth, not-found and malformed failures.
func (p Policy) Decide(kind provider.FailureKind, attempt int, retryAfter time.Duration) Decision {
	switch kind {
	case provider.FailureTimeout, provider.FailureUnavailable:
		if attempt+1 >= p.MaxAttempts {
			return Decision{}
		}

		return Decision{
			Retry: true,
			Delay: backoff.ExponentialCapped(p.BaseDelay, attempt, p.MaxDelay),
		}

	case provider.FailureRateLimited:
		if attempt != 0 || p.MaxAttempts < 2 {
			return Decision{}
		}

		return Decision{
			Retry: true,
			Delay: p.rateLimitDelay(retryAfter),
		}

	default:
		// Auth, not-found and malformed outcomes cannot change on retry.
		return Decision{}
	}
}

func (p Policy) rateLimitDelay(retryAfter time.Duration) time.Duration {
	if retryAfter <= 0 {
		return p.BaseDelay
	}

	if retryAfter > p.MaxDelay {
		return p.MaxDelay
	}

	return retryAfter
}
