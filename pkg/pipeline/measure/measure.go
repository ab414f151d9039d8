package measure

import (
	"sync"
	"time"
)

// OperationStats aggregates the completions observed for one operation kind.
type OperationStats struct {
	Count    int64
	Failures int64
	Elapsed  time.Duration
}

// DefaultMeasure is an in-memory Measure, mostly useful in tests and for the
// drawer's latency annotations.
type DefaultMeasure struct {
	mu         sync.Mutex
	operations map[string]*OperationStats
	events     map[string]int64
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		operations: make(map[string]*OperationStats),
		events:     make(map[string]int64),
	}
}

func (m *DefaultMeasure) ObserveOperation(kind string, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.operations[kind]
	if stats == nil {
		stats = &OperationStats{}
		m.operations[kind] = stats
	}
	stats.Count++
	stats.Elapsed += elapsed
	if err != nil {
		stats.Failures++
	}
}

func (m *DefaultMeasure) ObserveEvent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[kind]++
}

// Operation returns a copy of the stats for kind.
func (m *DefaultMeasure) Operation(kind string) OperationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.operations[kind]
	if stats == nil {
		return OperationStats{}
	}

	return *stats
}

// Events returns the number of events observed for kind.
func (m *DefaultMeasure) Events(kind string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.events[kind]
}

// AVGDuration returns the average completion latency for kind, rounded to a
// readable precision.
func (m *DefaultMeasure) AVGDuration(kind string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.operations[kind]
	if stats == nil || stats.Count == 0 {
		return 0
	}

	return round(time.Duration(float64(stats.Elapsed) / float64(stats.Count)))
}

var _ Measure = (*DefaultMeasure)(nil)

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
