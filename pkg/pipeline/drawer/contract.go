package drawer

// Drawer renders the stage chain for diagnostics.
type Drawer interface {
	// AddStage adds a stage node to the diagram.
	AddStage(stageName string) error
	// AddLink adds the downward operation edge between two adjacent stages.
	AddLink(parentStageName, childStageName string) error
	// Draw writes the diagram to its destination.
	Draw() error
}
