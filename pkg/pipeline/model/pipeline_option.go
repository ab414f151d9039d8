package model

import "time"

// PipelineOption defines the interface for pipeline instrumentation options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	// BeforeStage runs while the chain is built, once per stage, outermost
	// first. prev is the stage above, or CallerBoundary for the head.
	BeforeStage(prev, stage *StageInfo) error

	// OnOperation runs when an operation completes. elapsed covers the full
	// traversal from submission to completion.
	OnOperation(kind string, elapsed time.Duration, err error) error

	// OnEvent runs when an event reaches the top of the chain.
	OnEvent(kind string) error

	// Finish runs after the pipeline is shut down.
	Finish() error
}
