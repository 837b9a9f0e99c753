package circuitbreaker

import (
	"fmt"
	"time"
)

// Config holds the tunables of a single circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open.
	FailureThreshold uint64

	// OpenDuration is how long the breaker rejects calls before the next
	// acquisition is admitted as a half-open trial.
	OpenDuration time.Duration
}

// DefaultConfig returns a configuration suited to most upstream providers:
// five consecutive failures open the breaker for ten minutes.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenDuration:     10 * time.Minute,
	}
}

// AggressiveConfig trips fast and retries recovery quickly. Useful for
// providers with short outages and cheap probes.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold: 3,
		OpenDuration:     time.Minute,
	}
}

// ConservativeConfig tolerates longer failure streaks and backs off for
// longer once tripped. Useful for rate-limited or billed upstreams.
func ConservativeConfig() Config {
	return Config{
		FailureThreshold: 10,
		OpenDuration:     30 * time.Minute,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("%w: failure threshold must be positive", ErrInvalidConfig)
	}

	if c.OpenDuration <= 0 {
		return fmt.Errorf("%w: open duration must be positive", ErrInvalidConfig)
	}

	return nil
}
