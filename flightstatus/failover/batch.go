package failover

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/cache"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/errgroup"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// ErrNilOrchestrator is returned when a Coordinator is built without an
// Orchestrator.
var ErrNilOrchestrator = errors.New("failover: orchestrator is nil")

// BatchRequest names one flight-day to resolve.
type BatchRequest struct {
	FlightID      string
	DepartureDate time.Time
}

// BatchResult carries the outcome of one batch item. Exactly one of
// Record and Err is set.
type BatchResult struct {
	Request BatchRequest
	Record  *provider.FlightStatusRecord
	Err     error
}

// BatchOptions tunes one batch call. Zero values fall back to the
// orchestrator's configuration.
type BatchOptions struct {
	// Deadline bounds the whole batch. Items still pending when it
	// expires fail with a timeout.
	Deadline time.Duration

	// Concurrency caps how many items resolve at once.
	Concurrency int
}

// Coordinator resolves many flight-days concurrently over one
// Orchestrator. Items share the orchestrator's cache, breakers, and
// per-provider limits, so a batch cannot stampede a provider any harder
// than the same requests arriving individually.
type Coordinator struct {
	*Orchestrator
}

// NewCoordinator wraps an Orchestrator for batch resolution.
func NewCoordinator(orchestrator *Orchestrator) (*Coordinator, error) {
	if orchestrator == nil {
		return nil, ErrNilOrchestrator
	}

	return &Coordinator{Orchestrator: orchestrator}, nil
}

// ResolveMany resolves a set of flight-days and returns one result per
// distinct flight-day key. Duplicate requests are coalesced into a single
// resolution. Partial results are normal: each item carries its own
// record or error, and one item's failure never cancels the others.
func (c *Coordinator) ResolveMany(ctx context.Context, requests []BatchRequest, opts BatchOptions) map[cache.Key]BatchResult {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make(map[cache.Key]BatchResult, len(requests))
	if len(requests) == 0 {
		return results
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = c.config.GlobalDeadline
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.config.GlobalConcurrency
	}

	batchCtx, cancel, err := flightstatus.WithTimeoutSafe(ctx, deadline)
	if err != nil {
		// Only a nil parent fails, and ctx was defaulted above.
		batchCtx, cancel = context.WithTimeout(context.Background(), deadline)
	}
	defer cancel()

	items := coalesce(requests)

	tracer := otel.Tracer("failover")

	batchCtx, span := tracer.Start(batchCtx, "failover.batch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch.requests", len(requests)),
		attribute.Int("batch.items", len(items)),
	)

	c.metrics.RecordBatchItems(ctx, len(items))

	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	group.SetLimit(concurrency)

	for _, item := range items {
		group.Go(func() error {
			record, resolveErr := c.Resolve(batchCtx, item.request.FlightID, item.request.DepartureDate)

			mu.Lock()
			results[item.key] = BatchResult{Request: item.request, Record: record, Err: resolveErr}
			mu.Unlock()

			return nil
		})
	}

	// Items never return errors, so Wait only fails when a resolution
	// panicked. Items lost to the panic still get a result.
	if waitErr := group.Wait(); waitErr != nil {
		for _, item := range items {
			mu.Lock()
			if _, ok := results[item.key]; !ok {
				results[item.key] = BatchResult{Request: item.request, Err: waitErr}
			}
			mu.Unlock()
		}
	}

	return results
}

// ResolveAll resolves a batch and returns results in request order, one
// per request. Duplicate requests share a single resolution but each
// position keeps its own result.
func (c *Coordinator) ResolveAll(ctx context.Context, requests []BatchRequest, opts BatchOptions) []BatchResult {
	byKey := c.ResolveMany(ctx, requests, opts)

	ordered := make([]BatchResult, 0, len(requests))

	for _, request := range requests {
		result := byKey[cache.NewKey(request.FlightID, request.DepartureDate)]
		result.Request = request

		ordered = append(ordered, result)
	}

	return ordered
}

type batchItem struct {
	key     cache.Key
	request BatchRequest
}

// coalesce deduplicates requests by flight-day key, keeping first-seen
// order and the first spelling of each request.
func coalesce(requests []BatchRequest) []batchItem {
	seen := make(map[cache.Key]struct{}, len(requests))
	items := make([]batchItem, 0, len(requests))

	for _, request := range requests {
		key := cache.NewKey(request.FlightID, request.DepartureDate)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		items = append(items, batchItem{key: key, request: request})
	}

	return items
}
