package observability

// Metrics provides counter recording primitives for sigtap internals.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the system.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string) {}

// Counter names recorded by hooks and watchers.
const (
	// MetricSignalsIntercepted counts signal events forwarded to the sink,
	// labelled by kind.
	MetricSignalsIntercepted = "sigtap_signals_intercepted_total"
	// MetricFieldChanges counts watcher-observed field transitions.
	MetricFieldChanges = "sigtap_field_changes_total"
	// MetricSinkEmitFailures counts sink emits that panicked and were contained.
	MetricSinkEmitFailures = "sigtap_sink_emit_failures_total"
)
