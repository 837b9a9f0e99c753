package metrics

import (
	"context"
	"time"
)

// Label keys shared by the flight-status instruments.
const (
	LabelProvider = "provider"
	LabelKind     = "kind"
	LabelState    = "state"
)

// RecordProviderCall counts one real upstream call for the given provider.
func (f *MetricsFactory) RecordProviderCall(ctx context.Context, providerName string) {
	if counter, err := f.Counter(MetricProviderCalls); err == nil {
		_ = counter.WithLabels(map[string]string{LabelProvider: providerName}).AddOne(ctx)
	}
}

// RecordProviderFailure counts one failed upstream call, broken down by failure kind.
func (f *MetricsFactory) RecordProviderFailure(ctx context.Context, providerName, kind string) {
	if counter, err := f.Counter(MetricProviderFailures); err == nil {
		_ = counter.WithLabels(map[string]string{
			LabelProvider: providerName,
			LabelKind:     kind,
		}).AddOne(ctx)
	}
}

// RecordProviderLatency records the round-trip latency of one upstream call.
func (f *MetricsFactory) RecordProviderLatency(ctx context.Context, providerName string, latency time.Duration) {
	if histogram, err := f.Histogram(MetricProviderLatency); err == nil {
		_ = histogram.WithLabels(map[string]string{LabelProvider: providerName}).
			Record(ctx, latency.Milliseconds())
	}
}

// RecordBreakerTransition counts a circuit breaker state transition and updates
// the per-provider open gauge.
func (f *MetricsFactory) RecordBreakerTransition(ctx context.Context, providerName, toState string) {
	if counter, err := f.Counter(MetricBreakerTransitions); err == nil {
		_ = counter.WithLabels(map[string]string{
			LabelProvider: providerName,
			LabelState:    toState,
		}).AddOne(ctx)
	}

	var open int64
	if toState == "open" {
		open = 1
	}

	if gauge, err := f.Gauge(MetricBreakerOpen); err == nil {
		_ = gauge.WithLabels(map[string]string{LabelProvider: providerName}).Set(ctx, open)
	}
}

// RecordCacheHit counts a lookup answered by a fresh cache entry.
func (f *MetricsFactory) RecordCacheHit(ctx context.Context) {
	if counter, err := f.Counter(MetricCacheHits); err == nil {
		_ = counter.AddOne(ctx)
	}
}

// RecordCacheMiss counts a lookup that found no cache entry.
func (f *MetricsFactory) RecordCacheMiss(ctx context.Context) {
	if counter, err := f.Counter(MetricCacheMisses); err == nil {
		_ = counter.AddOne(ctx)
	}
}

// RecordStaleServed counts a lookup served a stale cache entry as fallback.
func (f *MetricsFactory) RecordStaleServed(ctx context.Context) {
	if counter, err := f.Counter(MetricCacheStaleServed); err == nil {
		_ = counter.AddOne(ctx)
	}
}

// RecordResolveDuration records the end-to-end latency of one resolution.
func (f *MetricsFactory) RecordResolveDuration(ctx context.Context, duration time.Duration) {
	if histogram, err := f.Histogram(MetricResolveDuration); err == nil {
		_ = histogram.Record(ctx, duration.Milliseconds())
	}
}

// RecordBatchItems records the size of a batch resolution.
func (f *MetricsFactory) RecordBatchItems(ctx context.Context, items int) {
	if histogram, err := f.Histogram(MetricBatchItems); err == nil {
		_ = histogram.Record(ctx, int64(items))
	}
}

// RecordRefresh counts one background refresh triggered by a stale read.
func (f *MetricsFactory) RecordRefresh(ctx context.Context) {
	if counter, err := f.Counter(MetricRefreshes); err == nil {
		_ = counter.AddOne(ctx)
	}
}
