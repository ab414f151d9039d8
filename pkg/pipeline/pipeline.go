package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/askiada/go-devicelink/internal/store"
	"github.com/askiada/go-devicelink/pkg/pipeline/model"
)

// EventSink receives events that bubble to the top of the chain. Sinks run
// on the pipeline's serialization loop and must not block.
type EventSink func(ev Event)

// Pipeline owns the head of the stage chain and is the attachment point
// callers use to submit operations. One pipeline drives one device
// connection.
type Pipeline struct {
	id     uuid.UUID
	logger *slog.Logger

	loop    *serializer
	head    Stage
	stages  []Stage
	pending *store.Pending[Operation]

	opts      []model.PipelineOption
	retry     RetryPolicy
	queueSize int

	sink atomic.Pointer[EventSink]

	// connected is shared connection state for the whole chain, only ever
	// touched from the serialization loop.
	connected bool

	startTime time.Time
	closeOnce sync.Once
	closeErr  error
}

// New builds a pipeline against the given transport. The stage chain is
// fixed at construction, outermost first: credential resolution, retry,
// transport coordination, transport boundary. The order is a correctness
// invariant: credentials must be resolved into connection arguments before
// any stage that needs them.
func New(transport Transport, opts ...Option) (*Pipeline, error) {
	if transport == nil {
		return nil, ErrTransportMustBeSet
	}

	p := &Pipeline{
		id:        uuid.New(),
		logger:    slog.Default(),
		pending:   store.NewPending[Operation](),
		retry:     DefaultRetryPolicy(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}
	p.logger = p.logger.With("pipeline_id", p.id.String())
	p.loop = newSerializer(p.queueSize)

	stages := []Stage{
		NewUseCredentialStage(),
		NewRetryStage(p.retry),
		NewCoordinatorStage(),
		NewTransportStage(transport),
	}
	if err := p.compose(stages); err != nil {
		return nil, err
	}

	for _, opt := range p.opts {
		if err := opt.New(); err != nil {
			return nil, errors.Wrap(err, "unable to initialise pipeline option")
		}
	}
	if err := p.announceStages(); err != nil {
		return nil, err
	}

	p.loop.start()
	for _, st := range p.stages {
		if starter, ok := st.(interface{ start() }); ok {
			starter.start()
		}
	}
	p.logger.Debug("pipeline started", "stages", len(p.stages))

	return p, nil
}

// compose wires the chain links and validates the topology.
func (p *Pipeline) compose(stages []Stage) error {
	chain := newFeature()
	var prev Stage
	for _, st := range stages {
		st.base().attach(p, prev)
		if prev != nil {
			prev.base().next = st
		}
		if err := chain.addStage(st.Name()); err != nil {
			return err
		}
		if prev != nil {
			if err := chain.addLink(prev.Name(), st.Name()); err != nil {
				return err
			}
		}
		prev = st
	}
	if err := chain.validate(len(stages)); err != nil {
		return err
	}

	p.head = stages[0]
	p.stages = stages

	return nil
}

func (p *Pipeline) announceStages() error {
	prevInfo := model.CallerBoundary
	for i, st := range p.stages {
		info := &model.StageInfo{
			Name:     st.Name(),
			Index:    i,
			Terminal: i == len(p.stages)-1,
		}
		for _, opt := range p.opts {
			if err := opt.BeforeStage(prevInfo, info); err != nil {
				return errors.Wrap(err, "unable to run before stage function")
			}
		}
		prevInfo = info
	}

	return nil
}

// Submit enqueues op into the head stage. The result is delivered through
// the operation's completion callback, never as a return value; the returned
// error only reports submission failures (nil op, reused op, shutdown).
//
// Operations submitted in sequence from the same caller reach the head stage
// in submission order.
func (p *Pipeline) Submit(op Operation) error {
	if op == nil {
		return ErrOperationMustBeSet
	}
	c := op.core()
	if c.Completed() {
		return errors.Wrapf(ErrOperationCompleted, "operation %s[%d]", op.Kind(), op.ID())
	}

	start := time.Now()
	c.bind(p.loop.invoke, func(done Operation) {
		p.pending.Remove(done.ID())
		p.observeOperation(done, time.Since(start))
	})
	p.pending.Add(op.ID(), op)

	if err := p.loop.invoke(func() { p.dispatch(op) }); err != nil {
		p.pending.Remove(op.ID())

		return errors.Wrapf(err, "unable to submit operation %s[%d]", op.Kind(), op.ID())
	}

	return nil
}

// dispatch runs op through the chain. A stage panicking while it holds an
// operation must not leave it pending: the panic completes the operation
// unless it is a defect signal (double completion, affinity violation),
// which keeps propagating.
func (p *Pipeline) dispatch(op Operation) {
	// The shutdown sweep completes operations whose dispatch tasks are still
	// queued when the drain deadline expires. Running such a task through the
	// chain would complete the operation a second time.
	if op.Completed() {
		p.logger.Debug("dropping dispatch of completed operation",
			"kind", string(op.Kind()), "op_id", op.ID())

		return
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if op.Completed() {
			if p.loop.isClosed() {
				// The sweep won the completion while a stage held the
				// operation; the stage's losing attempt is not a defect.
				p.logger.Debug("operation completed by shutdown during dispatch",
					"kind", string(op.Kind()), "op_id", op.ID())

				return
			}
			panic(r)
		}
		err, ok := r.(error)
		if !ok {
			err = errors.Errorf("%v", r)
		}
		p.logger.Error("stage panicked while processing operation",
			"kind", string(op.Kind()), "op_id", op.ID(), "error", err)
		Complete(op, errors.Wrap(err, "stage panic"))
	}()

	p.head.Run(op)
}

// RegisterEventSink installs the handler receiving events that reach the top
// of the chain. The sink runs on the serialization loop and must not block.
func (p *Pipeline) RegisterEventSink(sink EventSink) {
	p.sink.Store(&sink)
}

func (p *Pipeline) deliverEvent(ev Event) {
	p.observeEvent(ev)
	sink := p.sink.Load()
	if sink == nil {
		p.logger.Debug("event reached top of chain with no sink registered", "kind", string(ev.EventKind()))

		return
	}
	(*sink)(ev)
}

func (p *Pipeline) setConnected(connected bool) {
	p.loop.gate.Check()
	p.connected = connected
}

func (p *Pipeline) isConnected() bool {
	p.loop.gate.Check()

	return p.connected
}

func (p *Pipeline) observeOperation(op Operation, elapsed time.Duration) {
	for _, opt := range p.opts {
		if err := opt.OnOperation(string(op.Kind()), elapsed, op.Err()); err != nil {
			p.logger.Error("operation hook failed", "kind", string(op.Kind()), "error", err)
		}
	}
}

func (p *Pipeline) observeEvent(ev Event) {
	for _, opt := range p.opts {
		if err := opt.OnEvent(string(ev.EventKind())); err != nil {
			p.logger.Error("event hook failed", "kind", string(ev.EventKind()), "error", err)
		}
	}
}

// Shutdown stops the serialization loop after draining already-enqueued
// work, stops the stages, and completes every operation still in flight with
// ErrShuttingDown so no caller is left waiting forever. ctx bounds the wait
// for the loop to drain.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		drained := make(chan struct{})
		go func() {
			p.loop.stop()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			// Proceed without the drain: the sweep below races dispatch
			// tasks still queued on the loop, and dispatch drops operations
			// the sweep already completed.
			p.closeErr = errors.Wrap(ctx.Err(), "waiting for pipeline loop to drain")
		}

		for _, st := range p.stages {
			if stopper, ok := st.(interface{ stop() }); ok {
				stopper.stop()
			}
		}

		for _, op := range p.pending.Drain() {
			if completeIfPending(op, errors.Wrapf(ErrShuttingDown, "operation %s[%d]", op.Kind(), op.ID())) {
				p.logger.Debug("completed pending operation on shutdown", "kind", string(op.Kind()), "op_id", op.ID())
			}
		}

		for _, opt := range p.opts {
			if err := opt.Finish(); err != nil && p.closeErr == nil {
				p.closeErr = errors.Wrap(err, "unable to finish pipeline option")
			}
		}
		p.logger.Debug("pipeline shut down", "uptime", time.Since(p.startTime))
	})

	return p.closeErr
}

// ID identifies this pipeline instance in logs and metrics.
func (p *Pipeline) ID() uuid.UUID { return p.id }
