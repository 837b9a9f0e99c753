// Package cache provides a freshness-bounded cache for flight status
// records with in-memory and Redis backends.
//
// Freshness is judged by the reader: Get returns entries past the
// freshness TTL as-is, and callers decide via Entry.Fresh whether to
// serve them fresh or tag them stale. Stores retain entries well beyond
// the TTL so stale fallback has something to serve when every upstream
// provider is down.
package cache
