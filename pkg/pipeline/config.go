package pipeline

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-devicelink/config"
	"github.com/askiada/go-devicelink/pkg/pipeline/drawer"
	"github.com/askiada/go-devicelink/pkg/pipeline/measure"
)

// FromConfig builds a pipeline from a loaded configuration. Prometheus
// collectors go to reg when metrics are enabled; pass nil for the default
// registerer. Extra options apply after the configuration-derived ones.
func FromConfig(cfg config.Config, transport Transport, reg prometheus.Registerer, extra ...Option) (*Pipeline, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []Option{
		WithLogger(logger),
		WithQueueSize(cfg.QueueSize),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Interval:    cfg.Retry.Interval.Std(),
			Burst:       cfg.Retry.Burst,
		}),
	}
	if cfg.ChainDiagram != "" {
		opts = append(opts, WithInstrumentation(drawer.PipelineDrawer(drawer.NewSVGDrawer(cfg.ChainDiagram))))
	}
	if cfg.Metrics {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		// The pipeline id is not known before New runs; metrics are labelled
		// per process instead.
		prom, err := measure.NewPromMeasure(reg, "default")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithInstrumentation(measure.PipelineMeasure(prom)))
	}
	opts = append(opts, extra...)

	return New(transport, opts...)
}
