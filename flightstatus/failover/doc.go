// Package failover resolves flight status through an ordered set of
// providers with caching, retries, circuit breaking, and stale fallback.
//
// The Orchestrator answers one flight-day at a time: fresh cache hits are
// served directly, stale hits are served immediately while one background
// refresh runs, and misses walk the provider candidates in priority order
// under the retry policy and breaker permits. The Coordinator fans a batch
// of lookups across a bounded worker group with per-provider in-flight
// caps and one shared deadline.
package failover
