package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	constant "github.com/LerianStudio/lib-flightstatus/flightstatus/constants"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// DependencyCheck configures the health check for a single dependency.
//
// At minimum, provide a Name. For circuit breaker integration, provide both
// Breakers and BreakerName. For custom health logic, provide HealthCheck.
type DependencyCheck struct {
	// Name is the identifier for this dependency in the health response.
	Name string

	// Breakers is the circuit breaker manager (optional). When provided
	// with BreakerName, the health endpoint reports that breaker's state.
	Breakers circuitbreaker.Manager

	// BreakerName is the name the dependency's breaker is registered
	// under. Required if Breakers is provided.
	BreakerName string

	// HealthCheck is a custom health check function (optional). When
	// provided it overrides the breaker-derived health. Return true for
	// healthy.
	HealthCheck func() bool
}

// DependencyStatus is the health of a single dependency.
type DependencyStatus struct {
	// CircuitBreakerState is the dependency's breaker state (closed, open,
	// half-open). Only populated when a breaker is configured.
	CircuitBreakerState string `json:"circuit_breaker_state,omitempty"`

	// Healthy reports whether the dependency is currently usable.
	Healthy bool `json:"healthy"`

	// Breaker counters. Only populated when a breaker is configured.
	Requests            uint64 `json:"requests,omitempty"`
	TotalSuccesses      uint64 `json:"total_successes,omitempty"`
	TotalFailures       uint64 `json:"total_failures,omitempty"`
	ConsecutiveFailures uint64 `json:"consecutive_failures,omitempty"`
}

// HealthWithDependencies creates a Fiber handler that reports health based
// on circuit breaker states and custom health checks.
//
// Returns HTTP 200 (status "available") when all dependencies are healthy,
// or HTTP 503 (status "degraded") when any dependency fails. A dependency
// with an open breaker counts as failed; half-open counts as recovering and
// stays healthy.
func HealthWithDependencies(dependencies ...DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		overall := constant.HealthStatusAvailable
		httpStatus := fiber.StatusOK

		statuses := make(map[string]*DependencyStatus, len(dependencies))

		for _, dep := range dependencies {
			status := &DependencyStatus{Healthy: true}

			if dep.Breakers != nil && dep.BreakerName != "" {
				state := dep.Breakers.State(dep.BreakerName)
				counts := dep.Breakers.Counts(dep.BreakerName)

				status.CircuitBreakerState = state.String()
				status.Requests = counts.Requests
				status.TotalSuccesses = counts.TotalSuccesses
				status.TotalFailures = counts.TotalFailures
				status.ConsecutiveFailures = counts.ConsecutiveFailures

				status.Healthy = state != circuitbreaker.StateOpen
			}

			if dep.HealthCheck != nil {
				status.Healthy = dep.HealthCheck()
			}

			if !status.Healthy {
				overall = constant.HealthStatusDegraded
				httpStatus = fiber.StatusServiceUnavailable
			}

			statuses[dep.Name] = status
		}

		return JSONResponse(c, httpStatus, fiber.Map{
			"status":       overall,
			"dependencies": statuses,
		})
	}
}

// ProviderDependencies builds one DependencyCheck per registered provider,
// wired to that provider's circuit breaker. Breakers are created lazily on
// first call, so this primes them to report closed instead of unknown
// before any traffic.
func ProviderDependencies(registry *provider.Registry, breakers circuitbreaker.Manager) []DependencyCheck {
	if registry == nil {
		return nil
	}

	names := registry.Names()
	checks := make([]DependencyCheck, 0, len(names))

	for _, name := range names {
		if breakers != nil {
			breakers.GetOrCreate(name)
		}

		checks = append(checks, DependencyCheck{
			Name:        name,
			Breakers:    breakers,
			BreakerName: name,
		})
	}

	return checks
}
