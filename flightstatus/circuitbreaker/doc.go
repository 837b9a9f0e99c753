// Package circuitbreaker provides per-provider failure isolation and
// health-driven recovery for the flight-status layer.
//
// Each breaker is a CLOSED/OPEN/HALF_OPEN state machine: consecutive
// failures trip it open, open breakers fail fast without a network call,
// and after the open window one trial call probes recovery. Callers obtain
// a Permit via Acquire and settle it with exactly one of Success, Failure
// or Abandon; Abandon records neither outcome, so caller-side cancellation
// never poisons a provider's health signal.
//
// Use NewManager to create and manage per-provider breakers so failures are
// tracked consistently across callers. State change listeners receive
// transitions asynchronously; a panicking listener never affects breaker
// operation.
package circuitbreaker
