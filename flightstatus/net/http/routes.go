package http

import (
	"errors"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/cache"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/failover"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/health"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry/metrics"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

var (
	// ErrNilCoordinator is returned when NewApp is called without a resolver.
	ErrNilCoordinator = errors.New("coordinator cannot be nil, use failover.NewCoordinator()")

	// ErrNilRegistry is returned when NewApp is called without providers.
	ErrNilRegistry = errors.New("registry cannot be nil, use provider.NewRegistry()")
)

// AppConfig carries everything the HTTP surface needs. Coordinator and
// Registry are required; the rest degrade gracefully when absent.
type AppConfig struct {
	Coordinator *failover.Coordinator
	Registry    *provider.Registry
	Breakers    circuitbreaker.Manager
	Tracker     *health.Tracker
	Store       cache.Store
	Logger      log.Logger
	Tracer      trace.Tracer
	Metrics     *metrics.MetricsFactory
	ServiceName string
}

// NewApp assembles the fiber application: telemetry and access-log
// middleware, the resolution endpoints, and the operational read surface.
func NewApp(cfg AppConfig) (*fiber.App, error) {
	if cfg.Coordinator == nil {
		return nil, ErrNilCoordinator
	}

	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &log.NopLogger{}
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "flightstatus"
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		UnescapePath:          true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          FiberErrorHandler,
	})

	app.Use(WithTelemetry(cfg.Tracer, cfg.Metrics))
	app.Use(WithHTTPLogging(WithCustomLogger(logger)))

	status := &StatusHandler{Coordinator: cfg.Coordinator}
	stats := &StatsHandler{
		Orchestrator: cfg.Coordinator.Orchestrator,
		Registry:     cfg.Registry,
		Tracker:      cfg.Tracker,
		Breakers:     cfg.Breakers,
		Store:        cfg.Store,
	}

	app.Get("/ping", Ping)
	app.Get("/version", Version)
	app.Get("/health", HealthWithDependencies(ProviderDependencies(cfg.Registry, cfg.Breakers)...))
	app.Get("/stats", stats.GetStats)

	v1 := app.Group("/v1")
	v1.Get("/flights/:flight/status", status.GetFlightStatus)
	v1.Post("/flights/status/batch", status.BatchFlightStatus)

	return app, nil
}
