// Package simulated provides a deterministic in-memory flight-status
// provider for tests and local development.
//
// The provider ships with a small set of canned flight scenarios (AA123 on
// time, UA456 delayed, DL789 cancelled, SW111 diverted, AA999 erroring) and
// can be scripted at runtime: fail the next N calls with a chosen failure
// kind, fail every call, or rate-limit periodically. Latency is configurable
// and honored through the caller's context, so deadline behavior can be
// exercised without a network.
package simulated
