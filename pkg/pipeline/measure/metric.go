package measure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMeasure exports pipeline statistics as Prometheus metrics.
type PromMeasure struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

// NewPromMeasure registers the pipeline collectors with reg. pipelineID
// becomes a constant label so several pipelines can share a registry.
func NewPromMeasure(reg prometheus.Registerer, pipelineID string) (*PromMeasure, error) {
	labels := prometheus.Labels{"pipeline_id": pipelineID}
	m := &PromMeasure{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "devicelink_operations_total",
			Help:        "Operations completed by the pipeline, by kind and status.",
			ConstLabels: labels,
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "devicelink_operation_duration_seconds",
			Help:        "Submission-to-completion latency, by kind.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "devicelink_events_total",
			Help:        "Events that reached the top of the chain, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}

	for _, collector := range []prometheus.Collector{m.operations, m.duration, m.events} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *PromMeasure) ObserveOperation(kind string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *PromMeasure) ObserveEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

var _ Measure = (*PromMeasure)(nil)
