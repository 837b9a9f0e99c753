// Package health tracks per-provider health signals and runs the periodic
// probe loop.
//
// The Tracker keeps one snapshot per provider: call counts, a
// recency-weighted success score used by the failover orchestrator to break
// priority ties, and smoothed latency. The Monitor probes every registered
// provider on an interval, records the results as probe signal, and resets
// circuit breakers whose open window has expired once a probe succeeds, so
// traffic resumes without waiting for a live request to take the trial.
package health
