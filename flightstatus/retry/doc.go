// Package retry decides whether a failed provider attempt is worth
// repeating, and after what delay.
//
// The policy is a pure function over (failure kind, attempt number):
// transient kinds retry with capped exponential backoff while attempts
// remain, a rate-limited response earns exactly one retry after the
// provider-declared wait, and permanent kinds never retry. Callers sleep
// the returned delay with backoff.SleepWithContext so deadlines interrupt
// waiting.
package retry
