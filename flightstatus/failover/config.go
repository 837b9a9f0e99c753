package failover

import (
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/retry"
)

// ErrInvalidConfig indicates the failover configuration is invalid.
var ErrInvalidConfig = errors.New("failover: invalid config")

// Environment variable names recognized by ConfigFromEnv.
const (
	EnvMaxRetriesPerProvider  = "FLIGHTSTATUS_MAX_RETRIES_PER_PROVIDER"
	EnvBaseDelay              = "FLIGHTSTATUS_BASE_DELAY"
	EnvMaxDelay               = "FLIGHTSTATUS_MAX_DELAY"
	EnvBreakerThreshold       = "FLIGHTSTATUS_BREAKER_THRESHOLD"
	EnvBreakerOpenDuration    = "FLIGHTSTATUS_BREAKER_OPEN_DURATION"
	EnvCacheTTL               = "FLIGHTSTATUS_CACHE_TTL"
	EnvHealthCheckInterval    = "FLIGHTSTATUS_HEALTH_CHECK_INTERVAL"
	EnvGlobalDeadline         = "FLIGHTSTATUS_GLOBAL_DEADLINE"
	EnvGlobalConcurrency      = "FLIGHTSTATUS_GLOBAL_CONCURRENCY"
	EnvPerProviderConcurrency = "FLIGHTSTATUS_PER_PROVIDER_CONCURRENCY"
)

// Config carries every resolution tunable in one place.
type Config struct {
	// MaxRetriesPerProvider is the TOTAL number of attempts per provider
	// within one resolution, including the first call.
	MaxRetriesPerProvider int

	// BaseDelay seeds the exponential backoff between retry attempts.
	BaseDelay time.Duration

	// MaxDelay caps every computed retry delay, rate-limit waits included.
	MaxDelay time.Duration

	// BreakerThreshold is the consecutive-failure count that trips a
	// provider's circuit breaker.
	BreakerThreshold uint64

	// BreakerOpenDuration is how long a tripped breaker rejects calls
	// before admitting a trial.
	BreakerOpenDuration time.Duration

	// CacheTTL bounds how long a cached record counts as fresh.
	CacheTTL time.Duration

	// HealthCheckInterval is the probe period of the health monitor.
	HealthCheckInterval time.Duration

	// GlobalDeadline bounds one resolution (or one batch) end to end.
	GlobalDeadline time.Duration

	// GlobalConcurrency caps how many batch items resolve at once.
	GlobalConcurrency int

	// PerProviderConcurrency caps in-flight calls per provider when the
	// descriptor does not declare its own limit.
	PerProviderConcurrency int
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		MaxRetriesPerProvider:  2,
		BaseDelay:              250 * time.Millisecond,
		MaxDelay:               5 * time.Second,
		BreakerThreshold:       5,
		BreakerOpenDuration:    600 * time.Second,
		CacheTTL:               120 * time.Second,
		HealthCheckInterval:    300 * time.Second,
		GlobalDeadline:         5000 * time.Millisecond,
		GlobalConcurrency:      8,
		PerProviderConcurrency: 4,
	}
}

// ConfigFromEnv builds a Config from FLIGHTSTATUS_* environment variables,
// falling back to DefaultConfig for anything unset. Durations accept Go
// syntax ("250ms") or a bare integer in milliseconds.
func ConfigFromEnv() Config {
	defaults := DefaultConfig()

	return Config{
		MaxRetriesPerProvider:  int(flightstatus.GetenvIntOrDefault(EnvMaxRetriesPerProvider, int64(defaults.MaxRetriesPerProvider))),
		BaseDelay:              flightstatus.GetenvDurationOrDefault(EnvBaseDelay, defaults.BaseDelay),
		MaxDelay:               flightstatus.GetenvDurationOrDefault(EnvMaxDelay, defaults.MaxDelay),
		BreakerThreshold:       uint64(flightstatus.GetenvIntOrDefault(EnvBreakerThreshold, int64(defaults.BreakerThreshold))),
		BreakerOpenDuration:    flightstatus.GetenvDurationOrDefault(EnvBreakerOpenDuration, defaults.BreakerOpenDuration),
		CacheTTL:               flightstatus.GetenvDurationOrDefault(EnvCacheTTL, defaults.CacheTTL),
		HealthCheckInterval:    flightstatus.GetenvDurationOrDefault(EnvHealthCheckInterval, defaults.HealthCheckInterval),
		GlobalDeadline:         flightstatus.GetenvDurationOrDefault(EnvGlobalDeadline, defaults.GlobalDeadline),
		GlobalConcurrency:      int(flightstatus.GetenvIntOrDefault(EnvGlobalConcurrency, int64(defaults.GlobalConcurrency))),
		PerProviderConcurrency: int(flightstatus.GetenvIntOrDefault(EnvPerProviderConcurrency, int64(defaults.PerProviderConcurrency))),
	}
}

// Validate checks the config for structural problems.
func (c Config) Validate() error {
	if c.MaxRetriesPerProvider < 1 {
		return fmt.Errorf("%w: max retries per provider must be positive, got %d", ErrInvalidConfig, c.MaxRetriesPerProvider)
	}

	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %s", ErrInvalidConfig, c.BaseDelay)
	}

	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay %s is below base delay %s", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}

	if c.BreakerThreshold < 1 {
		return fmt.Errorf("%w: breaker threshold must be positive", ErrInvalidConfig)
	}

	if c.BreakerOpenDuration <= 0 {
		return fmt.Errorf("%w: breaker open duration must be positive, got %s", ErrInvalidConfig, c.BreakerOpenDuration)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive, got %s", ErrInvalidConfig, c.CacheTTL)
	}

	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("%w: health check interval must be positive, got %s", ErrInvalidConfig, c.HealthCheckInterval)
	}

	if c.GlobalDeadline <= 0 {
		return fmt.Errorf("%w: global deadline must be positive, got %s", ErrInvalidConfig, c.GlobalDeadline)
	}

	if c.GlobalConcurrency < 1 {
		return fmt.Errorf("%w: global concurrency must be positive, got %d", ErrInvalidConfig, c.GlobalConcurrency)
	}

	if c.PerProviderConcurrency < 1 {
		return fmt.Errorf("%w: per-provider concurrency must be positive, got %d", ErrInvalidConfig, c.PerProviderConcurrency)
	}

	return nil
}

// RetryPolicy derives the per-provider retry policy from the config.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxRetriesPerProvider,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
	}
}

// BreakerConfig derives the circuit breaker config from the config.
func (c Config) BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: c.BreakerThreshold,
		OpenDuration:     c.BreakerOpenDuration,
	}
}
