// Package store tracks operations that entered a pipeline and have not
// completed yet. The pipeline drains it on shutdown so no caller is left
// waiting on a callback that will never fire.
package store

import "sync"

// Pending is a keyed registry of in-flight items. It is safe for concurrent
// use: submissions add from caller goroutines while completions remove from
// the pipeline loop.
type Pending[T any] struct {
	mu    sync.Mutex
	items map[uint64]T
}

func NewPending[T any]() *Pending[T] {
	return &Pending[T]{items: make(map[uint64]T)}
}

func (p *Pending[T]) Add(id uint64, item T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[id] = item
}

func (p *Pending[T]) Remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, id)
}

func (p *Pending[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.items)
}

// Drain empties the registry and returns everything that was in flight.
func (p *Pending[T]) Drain() []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	drained := make([]T, 0, len(p.items))
	for _, item := range p.items {
		drained = append(drained, item)
	}
	p.items = make(map[uint64]T)

	return drained
}
