package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestFactory creates a MetricsFactory wired to an in-memory ManualReader so
// we can collect and inspect metric data without any exporter.
func newTestFactory(t *testing.T) (*MetricsFactory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test-lib")

	factory, err := NewMetricsFactory(meter, log.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	return factory, reader
}

// collectMetrics drains the ManualReader into a ResourceMetrics snapshot.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

// findMetric searches a ResourceMetrics snapshot for a metric by name.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

// sumCounterValue extracts the total monotonic sum from a counter metric.
func sumCounterValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64] data type, got %T", m.Data)

	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}

	return total
}

func TestNewMetricsFactoryRequiresMeter(t *testing.T) {
	factory, err := NewMetricsFactory(nil, log.NewNop())

	assert.Nil(t, factory)
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestNopFactoryIsSafe(t *testing.T) {
	factory := NewNopFactory()
	require.NotNil(t, factory)

	factory.RecordProviderCall(context.Background(), "flightaware")
	factory.RecordCacheHit(context.Background())
	factory.RecordResolveDuration(context.Background(), 120*time.Millisecond)
}

func TestCounterAddWithLabels(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	counter, err := factory.Counter(MetricProviderCalls)
	require.NoError(t, err)

	labeled := counter.WithLabels(map[string]string{LabelProvider: "flightaware"})
	require.NoError(t, labeled.AddOne(ctx))
	require.NoError(t, labeled.Add(ctx, 2))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricProviderCalls.Name)
	require.NotNil(t, m)

	assert.Equal(t, int64(3), sumCounterValue(t, m))

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)

	providerAttr, found := data.DataPoints[0].Attributes.Value(attribute.Key(LabelProvider))
	require.True(t, found)
	assert.Equal(t, "flightaware", providerAttr.AsString())
}

func TestCounterBuilderIsImmutable(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	base, err := factory.Counter(MetricProviderFailures)
	require.NoError(t, err)

	timeoutCounter := base.WithLabels(map[string]string{LabelKind: "timeout"})
	authCounter := base.WithLabels(map[string]string{LabelKind: "auth"})

	require.NoError(t, timeoutCounter.AddOne(ctx))
	require.NoError(t, authCounter.AddOne(ctx))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricProviderFailures.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, data.DataPoints, 2, "distinct label sets keep distinct data points")
}

func TestGaugeSetRecordsLastValue(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	gauge, err := factory.Gauge(MetricBreakerOpen)
	require.NoError(t, err)

	labeled := gauge.WithLabels(map[string]string{LabelProvider: "aviationstack"})
	require.NoError(t, labeled.Set(ctx, 1))
	require.NoError(t, labeled.Set(ctx, 0))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricBreakerOpen.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(0), data.DataPoints[0].Value)
}

func TestHistogramRecordsWithDefaultBuckets(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	histogram, err := factory.Histogram(MetricProviderLatency)
	require.NoError(t, err)

	require.NoError(t, histogram.Record(ctx, 42))
	require.NoError(t, histogram.Record(ctx, 730))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricProviderLatency.Name)
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.Equal(t, int64(772), data.DataPoints[0].Sum)
}

func TestInstrumentsAreCached(t *testing.T) {
	factory, _ := newTestFactory(t)

	first, err := factory.Counter(MetricCacheHits)
	require.NoError(t, err)

	second, err := factory.Counter(MetricCacheHits)
	require.NoError(t, err)

	assert.Equal(t, first.counter, second.counter, "same instrument instance reused")
}

func TestConcurrentInstrumentCreation(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			factory.RecordProviderCall(ctx, "flightaware")
		}()
	}

	wg.Wait()

	rm := collectMetrics(t, reader)
	m := findMetric(rm, MetricProviderCalls.Name)
	require.NotNil(t, m)
	assert.Equal(t, int64(50), sumCounterValue(t, m))
}

func TestSelectDefaultBuckets(t *testing.T) {
	assert.Equal(t, DefaultBatchBuckets, selectDefaultBuckets("flight_status_batch_items"))
	assert.Equal(t, DefaultLatencyBuckets, selectDefaultBuckets("flight_status_provider_latency"))
	assert.Equal(t, DefaultLatencyBuckets, selectDefaultBuckets("flight_status_resolve_duration"))
	assert.Equal(t, DefaultLatencyBuckets, selectDefaultBuckets("something_else"))
}

func TestRecordBreakerTransitionSetsOpenGauge(t *testing.T) {
	factory, reader := newTestFactory(t)
	ctx := context.Background()

	factory.RecordBreakerTransition(ctx, "flightaware", "open")

	rm := collectMetrics(t, reader)

	transitions := findMetric(rm, MetricBreakerTransitions.Name)
	require.NotNil(t, transitions)
	assert.Equal(t, int64(1), sumCounterValue(t, transitions))

	openGauge := findMetric(rm, MetricBreakerOpen.Name)
	require.NotNil(t, openGauge)

	data, ok := openGauge.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(1), data.DataPoints[0].Value)

	factory.RecordBreakerTransition(ctx, "flightaware", "closed")

	rm = collectMetrics(t, reader)
	openGauge = findMetric(rm, MetricBreakerOpen.Name)
	require.NotNil(t, openGauge)

	data, ok = openGauge.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(0), data.DataPoints[0].Value)
}
