package failover

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/backoff"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/cache"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/health"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	libOpentelemetry "github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry/metrics"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/retry"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/runtime"
)

var (
	// ErrEmptyFlightID is returned when a resolution is requested without
	// a flight ID.
	ErrEmptyFlightID = errors.New("failover: flight id is empty")

	// ErrNilRegistry is returned when the provider registry is missing.
	ErrNilRegistry = errors.New("failover: registry is nil")

	// ErrNilBreakers is returned when the breaker manager is missing.
	ErrNilBreakers = errors.New("failover: breaker manager is nil")

	// ErrNilTracker is returned when the health tracker is missing.
	ErrNilTracker = errors.New("failover: health tracker is nil")

	// ErrNilStore is returned when the cache store is missing.
	ErrNilStore = errors.New("failover: cache store is nil")
)

// staleFallbackTimeout bounds the detached cache read used when the
// caller's deadline has already expired.
const staleFallbackTimeout = time.Second

// OrchestratorConfig wires an Orchestrator's collaborators.
type OrchestratorConfig struct {
	// Registry holds the candidate providers.
	Registry *provider.Registry

	// Breakers guards each provider with a circuit breaker.
	Breakers circuitbreaker.Manager

	// Tracker receives per-call health outcomes and ranks ties.
	Tracker *health.Tracker

	// Store is the freshness cache.
	Store cache.Store

	// Config carries the resolution tunables. Zero value means
	// DefaultConfig.
	Config Config

	// Logger is optional. A nil logger disables logging.
	Logger log.Logger

	// Metrics is optional. A nil factory disables metric recording.
	Metrics *metrics.MetricsFactory
}

// Orchestrator resolves one flight-day at a time: fresh cache hits are
// served directly, stale hits are served immediately with one background
// refresh, and misses walk the providers in priority order under the
// retry policy and breaker permits.
type Orchestrator struct {
	registry *provider.Registry
	breakers circuitbreaker.Manager
	tracker  *health.Tracker
	store    cache.Store
	policy   retry.Policy
	config   Config
	logger   log.Logger
	metrics  *metrics.MetricsFactory

	counters counters

	// refreshing holds one marker per key with a background refresh in
	// flight, so concurrent stale reads trigger at most one refresh.
	refreshing sync.Map

	// sems holds one weighted semaphore per provider, bounding in-flight
	// calls across concurrent resolutions.
	sems sync.Map

	now func() time.Time
}

// NewOrchestrator validates the wiring and returns a ready Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}

	if cfg.Breakers == nil {
		return nil, ErrNilBreakers
	}

	if cfg.Tracker == nil {
		return nil, ErrNilTracker
	}

	if cfg.Store == nil {
		return nil, ErrNilStore
	}

	config := cfg.Config
	if config == (Config{}) {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	metricsFactory := cfg.Metrics
	if metricsFactory == nil {
		metricsFactory = metrics.NewNopFactory()
	} else {
		// Breaker transitions surface through the same sink as the
		// resolution metrics.
		cfg.Breakers.RegisterStateChangeListener(circuitbreaker.NewMetricsListener(metricsFactory))
	}

	return &Orchestrator{
		registry: cfg.Registry,
		breakers: cfg.Breakers,
		tracker:  cfg.Tracker,
		store:    cfg.Store,
		policy:   config.RetryPolicy(),
		config:   config,
		logger:   logger,
		metrics:  metricsFactory,
		now:      time.Now,
	}, nil
}

// Config returns the orchestrator's effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Stats returns a snapshot of the resolution counters.
func (o *Orchestrator) Stats() Stats {
	return o.counters.snapshot()
}

// Resolve returns the status of one flight-day. The caller's deadline is
// honored; callers without one are bounded by the configured global
// deadline. On upstream exhaustion a stale cache entry is served tagged
// Stale, and only when none exists does Resolve return a
// *provider.AggregateFailure carrying each provider's terminal failure.
func (o *Orchestrator) Resolve(ctx context.Context, flightID string, departureDate time.Time) (*provider.FlightStatusRecord, error) {
	if strings.TrimSpace(flightID) == "" {
		return nil, ErrEmptyFlightID
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel, err := flightstatus.WithTimeoutSafe(ctx, o.config.GlobalDeadline)
	if err != nil {
		return nil, err
	}
	defer cancel()

	key := cache.NewKey(flightID, departureDate)

	tracer := otel.Tracer("failover")

	ctx, span := tracer.Start(ctx, "failover.resolve")
	defer span.End()

	span.SetAttributes(
		attribute.String("flight.id", key.FlightID),
		attribute.String("flight.date", key.DepartureDate.Format("2006-01-02")),
	)

	start := time.Now()
	defer func() {
		o.metrics.RecordResolveDuration(ctx, time.Since(start))
	}()

	if entry, err := o.store.Get(ctx, key); err == nil && entry != nil && entry.Record != nil {
		if entry.Fresh(o.now(), o.config.CacheTTL) {
			o.counters.cacheHits.Add(1)
			o.metrics.RecordCacheHit(ctx)

			return entry.Record, nil
		}

		// Serve the stale record immediately and refresh behind the
		// response.
		o.counters.staleServes.Add(1)
		o.metrics.RecordStaleServed(ctx)
		libOpentelemetry.HandleSpanEvent(span, "stale_served")

		o.scheduleRefresh(ctx, key)

		stale := entry.Record.Clone()
		stale.Stale = true

		return stale, nil
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		o.logger.Log(ctx, log.LevelWarn, "cache read failed, treating as miss",
			log.String("key", key.String()),
			log.Err(err),
		)
	}

	o.counters.cacheMisses.Add(1)
	o.metrics.RecordCacheMiss(ctx)

	record, attempts, cause := o.resolveUpstream(ctx, key)
	if record != nil {
		return record, nil
	}

	if stale := o.staleFallback(ctx, key); stale != nil {
		o.counters.staleServes.Add(1)
		o.metrics.RecordStaleServed(ctx)
		libOpentelemetry.HandleSpanEvent(span, "stale_fallback_served")

		return stale, nil
	}

	o.counters.aggregateFailures.Add(1)

	failure := provider.NewAggregateFailure(key.FlightID, key.DepartureDate, attempts, cause)
	libOpentelemetry.HandleSpanError(span, "all providers failed", failure)

	return nil, failure
}

// resolveUpstream walks the ranked candidates until one succeeds. On
// success the record is written through to the cache. It returns the
// per-provider terminal failures in attempt order and, when the walk was
// cut short, the context error that ended it.
func (o *Orchestrator) resolveUpstream(ctx context.Context, key cache.Key) (*provider.FlightStatusRecord, []provider.AttemptFailure, error) {
	candidates := o.rankedCandidates()
	attempts := make([]provider.AttemptFailure, 0, len(candidates))

	for position, candidate := range candidates {
		record, failure, interrupted := o.attemptProvider(ctx, candidate, key)
		if record != nil {
			if position > 0 {
				o.counters.failovers.Add(1)
			}

			o.writeThrough(ctx, key, record)

			return record, attempts, nil
		}

		if failure != nil {
			attempts = append(attempts, *failure)
		}

		if interrupted {
			return nil, attempts, ctx.Err()
		}
	}

	return nil, attempts, nil
}

// rankedCandidates orders providers by priority ascending, breaking ties
// by health score descending.
func (o *Orchestrator) rankedCandidates() []provider.Registration {
	candidates := o.registry.Candidates()

	sort.SliceStable(candidates, func(i, j int) bool {
		left, right := candidates[i].Descriptor, candidates[j].Descriptor
		if left.Priority != right.Priority {
			return left.Priority < right.Priority
		}

		return o.tracker.Score(left.Name) > o.tracker.Score(right.Name)
	})

	return candidates
}

// attemptProvider runs the retry loop against one provider. It returns
// the record on success, the provider's terminal failure otherwise, and
// whether the caller's context ended the loop. An attempt whose parent
// context was cancelled is abandoned on the breaker and recorded nowhere.
func (o *Orchestrator) attemptProvider(
	ctx context.Context,
	candidate provider.Registration,
	key cache.Key,
) (*provider.FlightStatusRecord, *provider.AttemptFailure, bool) {
	name := candidate.Descriptor.Name
	breaker := o.breakers.GetOrCreate(name)
	sem := o.semaphoreFor(candidate.Descriptor)

	for attempt := 0; ; attempt++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, nil, true
		}

		permit, err := breaker.Acquire()
		if err != nil {
			sem.Release(1)

			// An open breaker skips the provider without a call; the
			// aggregate still names it so callers see why it was passed
			// over.
			o.logger.Log(ctx, log.LevelDebug, "provider skipped, breaker open",
				log.String("provider", name),
			)

			return nil, &provider.AttemptFailure{Provider: name, Kind: provider.FailureUnavailable}, false
		}

		record, latency, callErr := o.call(ctx, candidate, key)

		sem.Release(1)

		if callErr == nil {
			permit.Success()
			o.tracker.RecordSuccess(name, latency)
			o.metrics.RecordProviderLatency(ctx, name, latency)

			return record, nil, false
		}

		if ctx.Err() != nil {
			permit.Abandon()

			return nil, nil, true
		}

		permit.Failure()

		kind := provider.KindOf(callErr)
		o.tracker.RecordFailure(name, kind)
		o.metrics.RecordProviderFailure(ctx, name, string(kind))

		o.logger.Log(ctx, log.LevelWarn, "provider call failed",
			log.String("provider", name),
			log.String("kind", string(kind)),
			log.Int("attempt", attempt),
			log.Err(callErr),
		)

		var retryAfter time.Duration
		if failure, ok := provider.AsFailure(callErr); ok {
			retryAfter = failure.RetryAfter
		}

		decision := o.policy.Decide(kind, attempt, retryAfter)
		if !decision.Retry {
			return nil, &provider.AttemptFailure{Provider: name, Kind: kind}, false
		}

		if err := backoff.SleepWithContext(ctx, decision.Delay); err != nil {
			return nil, &provider.AttemptFailure{Provider: name, Kind: kind}, true
		}
	}
}

// call performs exactly one provider round trip under the per-provider
// timeout. The timeout never extends the caller's deadline.
func (o *Orchestrator) call(
	ctx context.Context,
	candidate provider.Registration,
	key cache.Key,
) (*provider.FlightStatusRecord, time.Duration, error) {
	name := candidate.Descriptor.Name

	callCtx, cancel, err := flightstatus.WithTimeoutSafe(ctx, candidate.Descriptor.Timeout)
	if err != nil {
		return nil, 0, err
	}
	defer cancel()

	o.counters.upstreamCalls.Add(1)
	o.metrics.RecordProviderCall(ctx, name)

	start := time.Now()
	record, callErr := candidate.Provider.FetchStatus(callCtx, key.FlightID, key.DepartureDate)
	latency := time.Since(start)

	if callErr == nil && record == nil {
		callErr = provider.NewFailure(name, provider.FailureMalformed, errors.New("provider returned no record"))
	}

	return record, latency, callErr
}

// writeThrough stores a fresh record. Failures are logged, never fatal:
// the record was already obtained and must be served.
func (o *Orchestrator) writeThrough(ctx context.Context, key cache.Key, record *provider.FlightStatusRecord) {
	if err := o.store.Put(ctx, key, record); err != nil {
		o.logger.Log(ctx, log.LevelWarn, "cache write-through failed",
			log.String("key", key.String()),
			log.Err(err),
		)
	}
}

// staleFallback reads the cache once more after upstream exhaustion. The
// read runs on a detached context so an already-expired caller deadline
// cannot block serving what is on hand.
func (o *Orchestrator) staleFallback(ctx context.Context, key cache.Key) *provider.FlightStatusRecord {
	fallbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), staleFallbackTimeout)
	defer cancel()

	entry, err := o.store.Get(fallbackCtx, key)
	if err != nil || entry == nil || entry.Record == nil {
		return nil
	}

	stale := entry.Record.Clone()
	stale.Stale = true

	return stale
}

// scheduleRefresh starts at most one background refresh per key. The
// refresh runs on a detached context with its own deadline and write-
// throughs on success; concurrent stale reads while it runs are no-ops.
func (o *Orchestrator) scheduleRefresh(ctx context.Context, key cache.Key) {
	marker := key.String()

	if _, inFlight := o.refreshing.LoadOrStore(marker, struct{}{}); inFlight {
		return
	}

	o.counters.refreshes.Add(1)
	o.metrics.RecordRefresh(ctx)

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.GlobalDeadline)

	runtime.SafeGoWithContextAndComponent(refreshCtx, o.logger, "failover", "stale.refresh", runtime.KeepRunning, func(ctx context.Context) {
		defer cancel()
		defer o.refreshing.Delete(marker)

		record, attempts, cause := o.resolveUpstream(ctx, key)
		if record == nil {
			o.logger.Log(ctx, log.LevelWarn, "background refresh failed",
				log.String("key", marker),
				log.Int("providers_failed", len(attempts)),
				log.Err(cause),
			)

			return
		}

		o.logger.Log(ctx, log.LevelDebug, "background refresh completed",
			log.String("key", marker),
			log.String("source", record.Source),
		)
	})
}

// semaphoreFor returns the in-flight cap for one provider, creating it on
// first use from the descriptor's MaxConcurrent.
func (o *Orchestrator) semaphoreFor(descriptor provider.Descriptor) *semaphore.Weighted {
	if existing, ok := o.sems.Load(descriptor.Name); ok {
		return existing.(*semaphore.Weighted)
	}

	limit := descriptor.MaxConcurrent
	if limit <= 0 {
		limit = o.config.PerProviderConcurrency
	}

	created, _ := o.sems.LoadOrStore(descriptor.Name, semaphore.NewWeighted(int64(limit)))

	return created.(*semaphore.Weighted)
}
