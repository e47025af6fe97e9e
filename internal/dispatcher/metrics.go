package dispatcher

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is shared by every dispatcher's metrics. Label names
// and values come only from PrometheusMetrics' labelsAndValues argument.
// internal/node calls it with none and passes the one Metrics to both the
// block and the transaction dispatcher, so their counts are summed into a
// single unlabeled series.
const MetricsSubsystem = "dispatcher"

// Metrics contains the counters and gauges spec.md §6 names for each
// dispatcher instance.
type Metrics struct {
	ActiveElements metrics.Gauge
	TotalElements  metrics.Counter
	Throughput     metrics.Counter
}

// PrometheusMetrics builds Metrics backed by the Prometheus client
// library, labeled with the given label/value pairs (if any).
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		ActiveElements: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "active_elements",
			Help:      "Number of elements currently owned by the dispatcher's ring.",
		}, labels).With(labelsAndValues...),
		TotalElements: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "total_elements",
			Help:      "Total number of elements submitted to the dispatcher.",
		}, labels).With(labelsAndValues...),
		Throughput: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "completed_elements",
			Help:      "Total number of elements that exited the consumer chain.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics, used by default and in tests.
func NopMetrics() *Metrics {
	return &Metrics{
		ActiveElements: discard.NewGauge(),
		TotalElements:  discard.NewCounter(),
		Throughput:     discard.NewCounter(),
	}
}
