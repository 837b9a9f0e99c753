package circuitbreaker

import (
	"sync"
	"time"
)

// Breaker is a consecutive-failure circuit breaker guarding one upstream
// provider.
//
// Closed breakers admit every call. After FailureThreshold consecutive
// failures the breaker opens and rejects calls without touching the
// upstream. Once OpenDuration elapses the next acquisition is admitted as a
// single half-open trial: its success closes the breaker, its failure
// reopens it for a fresh window. The open to half-open switch happens on
// acquisition, never on a timer.
//
// All methods are safe for concurrent use.
type Breaker struct {
	name   string
	config Config

	mu               sync.Mutex
	state            State
	generation       uint64
	openedAt         time.Time
	halfOpenInFlight bool
	counts           Counts

	// now is replaceable in tests.
	now func() time.Time

	// onStateChange is invoked with the breaker lock held and must not
	// call back into the breaker synchronously.
	onStateChange func(name string, from, to State)
}

// NewBreaker creates a closed breaker with the given configuration.
func NewBreaker(name string, config Config) (*Breaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}, nil
}

// Name returns the name the breaker was created with.
func (b *Breaker) Name() string {
	return b.name
}

// Acquire asks for permission to make one upstream call.
//
// It returns ErrOpenState without touching the upstream when the breaker is
// open, or when another caller already holds the half-open trial slot. On
// success the returned Permit must be settled with exactly one of Success,
// Failure or Abandon.
func (b *Breaker) Acquire() (*Permit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.OpenDuration {
		b.transitionLocked(StateHalfOpen)
	}

	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight {
			b.counts.Rejected++

			return nil, ErrOpenState
		}

		b.halfOpenInFlight = true
		b.counts.Requests++

		return &Permit{breaker: b, generation: b.generation, trial: true}, nil

	case StateOpen:
		b.counts.Rejected++

		return nil, ErrOpenState

	default:
		b.counts.Requests++

		return &Permit{breaker: b, generation: b.generation}, nil
	}
}

// State returns the breaker's current state. An expired open window is
// still reported as open until the next acquisition admits the trial.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Counts returns a snapshot of the breaker's cumulative statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// OpenExpired reports whether the breaker is open and its open window has
// elapsed, so the next acquisition will be admitted as a trial. Health
// probes use this to find breakers worth re-testing.
func (b *Breaker) OpenExpired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.OpenDuration
}

// Reset returns the breaker to closed and zeroes all counters. Outcomes of
// calls still in flight are discarded.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts = Counts{}
	b.transitionLocked(StateClosed)
}

// transitionLocked moves the breaker to a new state. It advances the
// generation so outcomes of permits issued before the transition are
// discarded, and it frees the half-open trial slot. Callers must hold b.mu.
func (b *Breaker) transitionLocked(to State) {
	from := b.state

	b.state = to
	b.generation++
	b.halfOpenInFlight = false

	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.openedAt = time.Time{}
		b.counts.ConsecutiveFailures = 0
	}

	if from != to && b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

func (b *Breaker) settleSuccess(generation uint64, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0

	if trial && b.state == StateHalfOpen {
		b.transitionLocked(StateClosed)
	}
}

func (b *Breaker) settleFailure(generation uint64, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	if trial && b.state == StateHalfOpen {
		b.transitionLocked(StateOpen)

		return
	}

	if b.state == StateClosed && b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) settleAbandon(generation uint64, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	if trial && b.state == StateHalfOpen {
		b.halfOpenInFlight = false
	}
}

// Permit represents one admitted upstream call.
//
// Exactly one of Success, Failure or Abandon settles the permit; later
// calls are no-ops. Abandon records neither a success nor a failure and is
// meant for caller-side cancellation, where the outcome says nothing about
// provider health. Abandoning a half-open trial frees the slot for the next
// caller.
type Permit struct {
	breaker    *Breaker
	generation uint64
	trial      bool
	once       sync.Once
}

// Success records a successful call.
func (p *Permit) Success() {
	if p == nil || p.breaker == nil {
		return
	}

	p.once.Do(func() { p.breaker.settleSuccess(p.generation, p.trial) })
}

// Failure records a failed call.
func (p *Permit) Failure() {
	if p == nil || p.breaker == nil {
		return
	}

	p.once.Do(func() { p.breaker.settleFailure(p.generation, p.trial) })
}

// Abandon settles the permit without recording an outcome.
func (p *Permit) Abandon() {
	if p == nil || p.breaker == nil {
		return
	}

	p.once.Do(func() { p.breaker.settleAbandon(p.generation, p.trial) })
}
