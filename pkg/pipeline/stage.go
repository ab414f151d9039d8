package pipeline

import "log/slog"

// Stage is one link in the processing chain. Concrete stages embed
// ChainStage and override Run or HandleEvent for the kinds they transform;
// everything else falls through to the default dispatch, so adding a stage
// never requires touching the others.
//
// All Stage methods run on the owning pipeline's serialization loop.
type Stage interface {
	Name() string

	// Run processes an operation travelling towards the transport.
	Run(op Operation)

	// HandleEvent processes an event travelling towards the caller.
	HandleEvent(ev Event)

	Next() Stage
	Previous() Stage

	base() *ChainStage
}

// ChainStage centralizes the link structure and the default dispatch shared
// by every concrete stage.
type ChainStage struct {
	name string
	pipe *Pipeline
	next Stage
	prev Stage
}

func newChainStage(name string) ChainStage {
	return ChainStage{name: name}
}

func (s *ChainStage) Name() string    { return s.name }
func (s *ChainStage) Next() Stage     { return s.next }
func (s *ChainStage) Previous() Stage { return s.prev }

func (s *ChainStage) base() *ChainStage { return s }

// attach wires the stage into its chain. The link structure is fixed after
// pipeline construction.
func (s *ChainStage) attach(pipe *Pipeline, prev Stage) {
	s.pipe = pipe
	s.prev = prev
}

// checkAffinity asserts the caller is on the pipeline loop. Stages detached
// from a pipeline (unit tests driving a stage directly) are exempt.
func (s *ChainStage) checkAffinity() {
	if s.pipe != nil {
		s.pipe.loop.gate.Check()
	}
}

func (s *ChainStage) logger() *slog.Logger {
	if s.pipe != nil {
		return s.pipe.logger
	}

	return slog.Default()
}

// Run is the default operation dispatch: pass the operation unchanged to the
// next stage. Reaching the end of the chain with an unhandled kind is a
// wiring bug and completes the operation with ErrNoStageForOperation.
func (s *ChainStage) Run(op Operation) {
	s.checkAffinity()
	PassToNext(s, op)
}

// HandleEvent is the default event dispatch: pass the event to the previous
// stage, or to the pipeline's registered sink at the head of the chain.
func (s *ChainStage) HandleEvent(ev Event) {
	s.checkAffinity()
	if s.prev != nil {
		s.prev.HandleEvent(ev)

		return
	}
	if s.pipe != nil {
		s.pipe.deliverEvent(ev)
	}
}
