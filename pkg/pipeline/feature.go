package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// feature tracks the chain topology as a directed graph while the pipeline
// is composed. It exists to enforce the structural invariant: acyclic,
// exactly one head, exactly one tail.
type feature struct {
	graph graph.Graph[string, string]
}

func newFeature() *feature {
	return &feature{
		graph: graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles()),
	}
}

func (f *feature) addStage(name string) error {
	err := f.graph.AddVertex(name)
	if err != nil {
		return errors.Wrapf(err, "unable to add stage %q", name)
	}

	return nil
}

func (f *feature) addLink(parentName, childName string) error {
	err := f.graph.AddEdge(parentName, childName)
	if err != nil {
		return errors.Wrapf(err, "unable to link %q to %q", parentName, childName)
	}

	return nil
}

func (f *feature) validate(expectedStages int) error {
	adjacency, err := f.graph.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to read adjacency map")
	}
	predecessors, err := f.graph.PredecessorMap()
	if err != nil {
		return errors.Wrap(err, "unable to read predecessor map")
	}

	if len(adjacency) != expectedStages {
		return errors.Wrapf(ErrInvalidChain, "expected %d stages, got %d", expectedStages, len(adjacency))
	}

	var heads, tails int
	for name := range adjacency {
		if len(predecessors[name]) == 0 {
			heads++
		}
		if len(adjacency[name]) == 0 {
			tails++
		}
	}
	if heads != 1 || tails != 1 {
		return errors.Wrapf(ErrInvalidChain, "%d heads, %d tails", heads, tails)
	}

	return nil
}
