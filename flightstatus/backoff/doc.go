// Package backoff provides retry delay helpers with exponential growth and jitter.
//
// Use ExponentialCapped for retry delay schedules and SleepWithContext to wait
// while respecting cancellation and deadlines.
package backoff
