package failover

import "sync/atomic"

// Stats is a point-in-time snapshot of resolution traffic.
type Stats struct {
	// CacheHits counts lookups answered by a fresh cache entry.
	CacheHits uint64 `json:"cache_hits"`

	// CacheMisses counts lookups that found no usable cache entry.
	CacheMisses uint64 `json:"cache_misses"`

	// StaleServes counts responses served from a stale cache entry, both
	// the serve-then-refresh path and the post-exhaustion fallback.
	StaleServes uint64 `json:"stale_serves"`

	// UpstreamCalls counts real provider calls launched.
	UpstreamCalls uint64 `json:"upstream_calls"`

	// Failovers counts resolutions answered by a provider other than the
	// first candidate.
	Failovers uint64 `json:"failovers"`

	// AggregateFailures counts resolutions that exhausted every provider
	// with no stale fallback to serve.
	AggregateFailures uint64 `json:"aggregate_failures"`

	// Refreshes counts background refreshes triggered by stale reads.
	Refreshes uint64 `json:"refreshes"`
}

// CacheHitRatio returns hits / (hits + misses), or 0 when nothing was
// looked up yet.
func (s Stats) CacheHitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}

	return float64(s.CacheHits) / float64(total)
}

type counters struct {
	cacheHits         atomic.Uint64
	cacheMisses       atomic.Uint64
	staleServes       atomic.Uint64
	upstreamCalls     atomic.Uint64
	failovers         atomic.Uint64
	aggregateFailures atomic.Uint64
	refreshes         atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		CacheHits:         c.cacheHits.Load(),
		CacheMisses:       c.cacheMisses.Load(),
		StaleServes:       c.staleServes.Load(),
		UpstreamCalls:     c.upstreamCalls.Load(),
		Failovers:         c.failovers.Load(),
		AggregateFailures: c.aggregateFailures.Load(),
		Refreshes:         c.refreshes.Load(),
	}
}
