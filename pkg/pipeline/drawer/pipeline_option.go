package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-devicelink/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
}

func (pd *pipelineDrawer) New() error {
	return errors.Wrap(pd.AddStage(model.CallerBoundary.Name), "unable to add caller boundary")
}

func (pd *pipelineDrawer) BeforeStage(prev, stage *model.StageInfo) error {
	err := pd.AddStage(stage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add stage")
	}
	err = pd.AddLink(prev.Name, stage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add link")
	}

	return nil
}

func (pd *pipelineDrawer) OnOperation(_ string, _ time.Duration, _ error) error { return nil }

func (pd *pipelineDrawer) OnEvent(_ string) error { return nil }

func (pd *pipelineDrawer) Finish() error {
	return errors.Wrap(pd.Draw(), "unable to draw pipeline")
}

// PipelineDrawer adapts a Drawer into a pipeline instrumentation option.
// The diagram is written when the pipeline shuts down.
func PipelineDrawer(d Drawer) model.PipelineOption {
	return &pipelineDrawer{d}
}
