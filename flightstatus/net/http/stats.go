package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/cache"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/failover"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/health"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// StatsHandler serves the operational read surface: per-provider health
// snapshots and breaker states, resolver counters, and cache statistics.
type StatsHandler struct {
	Orchestrator *failover.Orchestrator
	Registry     *provider.Registry
	Tracker      *health.Tracker
	Breakers     circuitbreaker.Manager
	Store        cache.Store
}

// providerStats flattens one provider's health snapshot with its breaker
// view.
type providerStats struct {
	health.Snapshot
	BreakerState string                `json:"breaker_state,omitempty"`
	Breaker      circuitbreaker.Counts `json:"breaker"`
}

type statsResponse struct {
	Providers     []providerStats `json:"providers"`
	Resolver      failover.Stats  `json:"resolver"`
	CacheHitRatio float64         `json:"cache_hit_ratio"`
	Cache         *cache.Stats    `json:"cache,omitempty"`
}

// GetStats answers GET /stats. Every registered provider appears, including
// ones that have not served traffic yet.
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	logger := flightstatus.NewLoggerFromContext(ctx)

	response := statsResponse{}

	if h.Registry != nil {
		names := h.Registry.Names()
		response.Providers = make([]providerStats, 0, len(names))

		for _, name := range names {
			stats := providerStats{Snapshot: health.Snapshot{Provider: name}}

			if h.Tracker != nil {
				if snapshot, ok := h.Tracker.Snapshot(name); ok {
					stats.Snapshot = snapshot
				}
			}

			if h.Breakers != nil {
				stats.BreakerState = h.Breakers.State(name).String()
				stats.Breaker = h.Breakers.Counts(name)
			}

			response.Providers = append(response.Providers, stats)
		}
	}

	if h.Orchestrator != nil {
		response.Resolver = h.Orchestrator.Stats()
		response.CacheHitRatio = response.Resolver.CacheHitRatio()
	}

	if h.Store != nil {
		cacheStats, err := h.Store.Stats(ctx)
		if err != nil {
			logger.Log(ctx, log.LevelWarn, "cache stats unavailable", log.Err(err))
		} else {
			response.Cache = &cacheStats
		}
	}

	return OK(c, response)
}
