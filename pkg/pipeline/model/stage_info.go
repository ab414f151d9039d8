package model

// StageInfo describes one stage's position in the chain for diagnostics and
// instrumentation. The chain itself lives in the pipeline package; options
// only ever see this read-only view.
type StageInfo struct {
	Name     string
	Index    int
	Terminal bool
}

// Pseudo-stages bracketing the chain: operations enter from the caller side
// and leave towards the transport.
var (
	CallerBoundary    = &StageInfo{Name: "caller"}
	TransportBoundary = &StageInfo{Name: "transport"}
)
