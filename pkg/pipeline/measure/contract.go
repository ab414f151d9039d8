package measure

import "time"

// Measure collects per-kind operation and event statistics for one pipeline.
// Implementations must be safe for concurrent use: completions can be
// observed from the pipeline loop and from transport goroutines during
// shutdown.
type Measure interface {
	ObserveOperation(kind string, elapsed time.Duration, err error)
	ObserveEvent(kind string)
}
