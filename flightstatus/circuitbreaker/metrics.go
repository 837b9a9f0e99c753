package circuitbreaker

import (
	"context"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry/metrics"
)

// MetricsListener exports breaker state changes as telemetry: one
// transition counter increment per change, and a per-provider gauge that
// reads 1 while the breaker is open. Register it on the Manager alongside
// the health monitor.
type MetricsListener struct {
	factory *metrics.MetricsFactory
}

var _ StateChangeListener = (*MetricsListener)(nil)

// NewMetricsListener creates a listener that records through factory. A nil
// factory records nothing.
func NewMetricsListener(factory *metrics.MetricsFactory) *MetricsListener {
	if factory == nil {
		factory = metrics.NewNopFactory()
	}

	return &MetricsListener{factory: factory}
}

// OnStateChange implements StateChangeListener.
func (l *MetricsListener) OnStateChange(name string, _, to State) {
	l.factory.RecordBreakerTransition(context.Background(), name, to.String())
}
