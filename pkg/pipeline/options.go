package pipeline

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-devicelink/pkg/pipeline/model"
)

// Option configures a Pipeline at construction time.
type Option func(p *Pipeline) error

// WithLogger replaces the pipeline's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			return errors.New("logger must be set")
		}
		p.logger = logger

		return nil
	}
}

// WithQueueSize sets the submission queue depth. Submit blocks once the
// queue is full.
func WithQueueSize(size int) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return errors.New("queue size must be greater than 0")
		}
		p.queueSize = size

		return nil
	}
}

// RetryPolicy bounds the retry stage's reissue behavior.
type RetryPolicy struct {
	// MaxAttempts counts the first issue as attempt 1.
	MaxAttempts int
	// Interval paces reissues across all retried operations.
	Interval time.Duration
	// Burst allows this many immediate reissues before pacing kicks in.
	Burst int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Interval:    time.Second,
		Burst:       1,
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return errors.New("max attempts must be greater than 0")
		}
		if policy.Interval <= 0 {
			return errors.New("interval must be greater than 0")
		}
		p.retry = policy

		return nil
	}
}

// WithInstrumentation attaches instrumentation options (measure, drawer) to
// the pipeline.
func WithInstrumentation(opts ...model.PipelineOption) Option {
	return func(p *Pipeline) error {
		p.opts = append(p.opts, opts...)

		return nil
	}
}
