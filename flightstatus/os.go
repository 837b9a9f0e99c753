package flightstatus

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/joho/godotenv"
)

// GetenvOrDefault returns the value of the environment variable or the default
// when the variable is unset, empty, or whitespace-only.
func GetenvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	return value
}

// GetenvBoolOrDefault returns the boolean value of the environment variable or
// the default when the variable is unset or not a valid boolean.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvIntOrDefault returns the integer value of the environment variable or
// the default when the variable is unset or not a valid integer.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvDurationOrDefault returns the duration value of the environment
// variable or the default when the variable is unset or unparsable.
// Accepts Go duration syntax ("250ms", "5s") or a bare integer in milliseconds.
func GetenvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}

	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(millis) * time.Millisecond
	}

	return defaultValue
}

// InitLocalEnvConfig loads variables from a local .env file when one exists.
// Missing files are not an error: deployed environments configure through
// real environment variables and have no .env.
func InitLocalEnvConfig(logger log.Logger) {
	if _, err := os.Stat(".env"); err != nil {
		return
	}

	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Log(context.Background(), log.LevelWarn, "failed to load .env file", log.Err(err))
	}
}
