// Package metrics provides a fluent factory for OpenTelemetry metric instruments.
//
// MetricsFactory caches instruments and exposes builder-style APIs for counters,
// gauges, and histograms with low-overhead attribute composition.
//
// Convenience methods (for example RecordProviderCall) are provided for the
// flight-status telemetry surface: provider call counts, failure breakdowns by
// kind, breaker transitions, latency, and cache effectiveness.
package metrics
