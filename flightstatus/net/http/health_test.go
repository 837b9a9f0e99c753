package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	constant "github.com/LerianStudio/lib-flightstatus/flightstatus/constants"
)

type healthBody struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

func TestHealth_Available(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testConfig())

	resp := env.get(t, "/health")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body healthBody
	decodeJSON(t, resp, &body)

	assert.Equal(t, constant.HealthStatusAvailable, body.Status)
	require.Len(t, body.Dependencies, 2)

	for _, name := range []string{"primary", "backup"} {
		dep, ok := body.Dependencies[name]
		require.True(t, ok, "dependency %s missing", name)
		assert.True(t, dep.Healthy)
		assert.Equal(t, "closed", dep.CircuitBreakerState)
	}
}

func TestHealth_DegradedWhenBreakersOpen(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BreakerThreshold = 1

	env := newTestEnv(t, cfg)

	// AA999 fails on every provider, tripping both breakers at threshold 1.
	resp := env.get(t, "/v1/flights/AA999/status?date=2025-03-01")
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/health")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body healthBody
	decodeJSON(t, resp, &body)

	assert.Equal(t, constant.HealthStatusDegraded, body.Status)

	primary := body.Dependencies["primary"]
	assert.False(t, primary.Healthy)
	assert.Equal(t, "open", primary.CircuitBreakerState)
	assert.NotZero(t, primary.TotalFailures)
}

func TestHealthWithDependencies_CustomCheck(t *testing.T) {
	t.Parallel()

	healthy := true

	app := fiber.New()
	app.Get("/health", HealthWithDependencies(DependencyCheck{
		Name:        "redis",
		HealthCheck: func() bool { return healthy },
	}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body healthBody
	decodeJSON(t, resp, &body)
	assert.Equal(t, constant.HealthStatusAvailable, body.Status)
	assert.True(t, body.Dependencies["redis"].Healthy)

	healthy = false

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	decodeJSON(t, resp, &body)
	assert.Equal(t, constant.HealthStatusDegraded, body.Status)
	assert.False(t, body.Dependencies["redis"].Healthy)
}

func TestHealth_NoDependencies(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/health", HealthWithDependencies())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body healthBody
	decodeJSON(t, resp, &body)
	assert.Equal(t, constant.HealthStatusAvailable, body.Status)
	assert.Empty(t, body.Dependencies)
}

// Stale-window sanity: an open breaker reported by /health does not block
// cache reads, so /health can degrade while lookups still answer 200.
func TestHealth_DegradedStillServesCached(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BreakerThreshold = 1
	cfg.CacheTTL = time.Hour

	env := newTestEnv(t, cfg)

	resp := env.get(t, "/v1/flights/AA123/status?date=2025-03-01")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/v1/flights/AA999/status?date=2025-03-01")
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/health")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/v1/flights/AA123/status?date=2025-03-01")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
