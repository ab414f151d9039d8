package pipeline

import (
	"github.com/pkg/errors"
)

// Operation flow helpers. Stages use these to move an operation to the next
// stage, to finish it, or to replace it with more specific operations whose
// outcome decides the original's completion.

// PassToNext forwards op verbatim to the stage after s. If s is the last
// stage, no stage in the chain handles this operation kind: the chain is
// misconfigured, and op completes with ErrNoStageForOperation.
func PassToNext(s Stage, op Operation) {
	next := s.Next()
	if next == nil {
		base := s.base()
		if base.pipe != nil {
			base.pipe.logger.Error("pipeline misconfigured: operation fell off the chain",
				"stage", s.Name(), "kind", string(op.Kind()), "op_id", op.ID())
		}
		Complete(op, errors.Wrapf(ErrNoStageForOperation, "stage %q, operation %s[%d]", s.Name(), op.Kind(), op.ID()))

		return
	}
	next.Run(op)
}

// Complete finishes op exactly once, invoking its completion callback with
// err (nil on success). Completing an operation twice double-invokes the
// caller's callback, which is a programming error: Complete panics rather
// than tolerating it.
func Complete(op Operation, err error) {
	c := op.core()
	if !c.tryComplete(err) {
		panic(errors.Wrapf(ErrOperationCompleted, "operation %s[%d] completed twice", op.Kind(), op.ID()))
	}
	c.deliver(op, err)
}

// completeIfPending finishes op like Complete but reports instead of
// panicking when the operation is already done. Delegation callbacks, retry
// timers and shutdown draining race each other legitimately; whichever loses
// must be a no-op.
func completeIfPending(op Operation, err error) bool {
	c := op.core()
	if !c.tryComplete(err) {
		return false
	}
	c.deliver(op, err)

	return true
}

// deliver runs the finalizer and the completion callback. The callback
// re-enters the serialization loop asynchronously when called from outside
// it, so a delegated completion never blocks the loop; when already on the
// loop it runs inline.
func (c *operationCore) deliver(op Operation, err error) {
	c.mu.Lock()
	onComplete := c.onComplete
	finalize := c.finalize
	invoke := c.invoke
	c.mu.Unlock()

	if finalize != nil {
		finalize(op)
	}
	if onComplete == nil {
		return
	}
	if invoke != nil {
		if qerr := invoke(func() { onComplete(op, err) }); qerr == nil {
			return
		}
	}
	onComplete(op, err)
}

// Delegate replaces op with replacement: replacement is submitted to the
// stage after s, and whenever it completes, its outcome completes op. The
// caller that created op never learns the translation happened.
//
// A completion callback already attached to replacement is preserved: it
// runs first, then replacement's outcome decides op.
func Delegate(s Stage, op, replacement Operation) {
	DelegateSequence(s, op, replacement)
}

// DelegateSequence replaces op with an ordered series of operations. Each
// replacement is submitted only after the previous one completed
// successfully; the first failure completes op with that error and the rest
// are never issued. When the whole series succeeds, op completes with nil.
func DelegateSequence(s Stage, op Operation, replacements ...Operation) {
	if len(replacements) == 0 {
		completeIfPending(op, nil)

		return
	}

	head, rest := replacements[0], replacements[1:]
	c := head.core()
	c.inheritBinding(op.core())
	prior := c.callback()
	c.setCallback(func(done Operation, err error) {
		if prior != nil {
			prior(done, err)
		}
		if err != nil {
			completeIfPending(op, errors.Wrapf(err, "delegated operation %s[%d] failed", head.Kind(), head.ID()))

			return
		}
		// A completion arriving while the pipeline tears down must not
		// re-enter the chain; the shutdown drain owns op from here.
		if stopped(s) {
			completeIfPending(op, errors.Wrapf(ErrShuttingDown, "operation %s[%d]", op.Kind(), op.ID()))

			return
		}
		DelegateSequence(s, op, rest...)
	})
	PassToNext(s, head)
}

func stopped(s Stage) bool {
	pipe := s.base().pipe

	return pipe != nil && pipe.loop.isClosed()
}
