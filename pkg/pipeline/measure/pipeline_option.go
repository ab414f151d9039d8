package measure

import (
	"time"

	"github.com/askiada/go-devicelink/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New() error { return nil }

func (pm *pipelineMeasure) BeforeStage(_, _ *model.StageInfo) error { return nil }

func (pm *pipelineMeasure) OnOperation(kind string, elapsed time.Duration, err error) error {
	pm.ObserveOperation(kind, elapsed, err)

	return nil
}

func (pm *pipelineMeasure) OnEvent(kind string) error {
	pm.ObserveEvent(kind)

	return nil
}

func (pm *pipelineMeasure) Finish() error { return nil }

// PipelineMeasure adapts a Measure into a pipeline instrumentation option.
func PipelineMeasure(m Measure) model.PipelineOption {
	return &pipelineMeasure{m}
}
