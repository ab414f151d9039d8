package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingAddRemove(t *testing.T) {
	p := NewPending[string]()

	p.Add(1, "one")
	p.Add(2, "two")
	assert.Equal(t, 2, p.Len())

	p.Remove(1)
	assert.Equal(t, 1, p.Len())

	// Removing an unknown id is a no-op.
	p.Remove(99)
	assert.Equal(t, 1, p.Len())
}

func TestPendingAddOverwritesSameID(t *testing.T) {
	p := NewPending[string]()

	p.Add(1, "one")
	p.Add(1, "uno")
	assert.Equal(t, 1, p.Len())

	drained := p.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "uno", drained[0])
}

func TestPendingDrainEmpties(t *testing.T) {
	p := NewPending[int]()
	for i := 1; i <= 5; i++ {
		p.Add(uint64(i), i*10)
	}

	drained := p.Drain()
	assert.Len(t, drained, 5)
	assert.ElementsMatch(t, []int{10, 20, 30, 40, 50}, drained)
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Drain())
}

func TestPendingConcurrentUse(t *testing.T) {
	p := NewPending[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := uint64(i*100 + j)
				p.Add(id, j)
				p.Remove(id)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, p.Len())
}
