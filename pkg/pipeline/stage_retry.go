package pipeline

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RetryStage reissues operations that fail with a transient error
// (IsTransient). Each attempt travels down the chain as a fresh delegated
// operation so the exactly-once completion of the original is preserved.
// Reissues are paced by a shared rate limiter and bounded by the policy's
// MaxAttempts; non-transient failures complete the original immediately.
//
// While one operation waits out its backoff, other operations keep flowing:
// a retried operation may be overtaken by later submissions.
type RetryStage struct {
	ChainStage
	policy  RetryPolicy
	limiter *rate.Limiter
}

func NewRetryStage(policy RetryPolicy) *RetryStage {
	burst := policy.Burst
	if burst < 1 {
		burst = 1
	}

	return &RetryStage{
		ChainStage: newChainStage("retry"),
		policy:     policy,
		limiter:    rate.NewLimiter(rate.Every(policy.Interval), burst),
	}
}

func (s *RetryStage) Run(op Operation) {
	s.checkAffinity()
	if _, ok := cloneForRetry(op); !ok {
		s.ChainStage.Run(op)

		return
	}
	s.attempt(op, 1)
}

func (s *RetryStage) attempt(op Operation, attempt int) {
	clone, _ := cloneForRetry(op)
	c := clone.core()
	c.inheritBinding(op.core())
	c.setCallback(func(_ Operation, err error) {
		switch {
		case err == nil:
			completeIfPending(op, nil)
		case !IsTransient(err):
			completeIfPending(op, errors.Wrapf(err, "operation %s[%d]", op.Kind(), op.ID()))
		case attempt >= s.policy.MaxAttempts:
			completeIfPending(op, errors.Wrapf(err, "%s: %d attempts", ErrMaxAttemptsExceeded, attempt))
		default:
			delay := s.limiter.Reserve().Delay()
			s.logger().Debug("retrying operation",
				"kind", string(op.Kind()), "op_id", op.ID(), "attempt", attempt+1, "delay", delay)
			s.reissueAfter(op, attempt+1, delay)
		}
	})
	PassToNext(s, clone)
}

// reissueAfter marshals the next attempt back onto the serialization loop
// once the backoff elapses. The loop is never blocked while an operation
// waits.
func (s *RetryStage) reissueAfter(op Operation, attempt int, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if s.pipe == nil {
			s.attempt(op, attempt)

			return
		}
		err := s.pipe.loop.invoke(func() { s.attempt(op, attempt) })
		if err != nil {
			completeIfPending(op, errors.Wrapf(ErrShuttingDown, "operation %s[%d]", op.Kind(), op.ID()))
		}
	})
}

// cloneForRetry builds a fresh issue of a retryable operation. Kinds outside
// this set pass through the stage untouched.
func cloneForRetry(op Operation) (Operation, bool) {
	switch op := op.(type) {
	case *ConnectOperation:
		return NewConnectOperation(nil), true
	case *SendTelemetryOperation:
		clone, err := NewSendTelemetryOperation(op.Payload, op.Properties, nil)
		if err != nil {
			return nil, false
		}

		return clone, true
	case *UploadBlobOperation:
		clone, err := NewUploadBlobOperation(op.BlobName, op.Data, nil)
		if err != nil {
			return nil, false
		}

		return clone, true
	case *MethodResponseOperation:
		clone, err := NewMethodResponseOperation(op.RequestID, op.Status, op.Payload, nil)
		if err != nil {
			return nil, false
		}

		return clone, true
	default:
		return nil, false
	}
}
