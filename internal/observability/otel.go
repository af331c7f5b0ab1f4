package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelMetrics records counters through an OpenTelemetry meter.
type OtelMetrics struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
}

// NewOtelMetrics constructs a metrics collector backed by the given meter.
func NewOtelMetrics(meter metric.Meter) *OtelMetrics {
	m := new(OtelMetrics)
	m.meter = meter
	m.counters = make(map[string]metric.Float64Counter)
	return m
}

// IncCounter adds value to the named counter with the provided labels.
// Instrument creation failures degrade to a dropped observation rather than
// surfacing into the signal path.
func (m *OtelMetrics) IncCounter(name string, value float64, labels map[string]string) {
	counter := m.counter(name)
	if counter == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (m *OtelMetrics) counter(name string) metric.Float64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[name]; ok {
		return counter
	}
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return nil
	}
	m.counters[name] = counter
	return counter
}
