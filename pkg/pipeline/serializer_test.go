package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSerializerRunsTasksInSubmissionOrder(t *testing.T) {
	loop := newSerializer(16)
	loop.start()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, loop.invoke(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	loop.stop()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestSerializerInvokeAfterStop(t *testing.T) {
	loop := newSerializer(16)
	loop.start()
	loop.stop()

	err := loop.invoke(func() {
		t.Error("task ran after stop")
	})
	require.ErrorIs(t, err, ErrShuttingDown)
	assert.True(t, loop.isClosed())
}

func TestSerializerStopDrainsPendingTasks(t *testing.T) {
	loop := newSerializer(16)
	loop.start()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 8; i++ {
		require.NoError(t, loop.invoke(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}))
	}
	loop.stop()

	assert.Equal(t, 8, ran)
}

func TestSerializerStopIsIdempotent(t *testing.T) {
	loop := newSerializer(16)
	loop.start()
	loop.stop()
	loop.stop()
}

func TestSerializerSchedulingFromLoopDoesNotDeadlock(t *testing.T) {
	// Queue of one: a task scheduling two follow-ups overflows the queue and
	// must fall back to running inline instead of blocking the only consumer.
	loop := newSerializer(1)
	loop.start()

	done := make(chan struct{})
	var mu sync.Mutex
	ran := 0
	require.NoError(t, loop.invoke(func() {
		for i := 0; i < 2; i++ {
			assert.NoError(t, loop.invoke(func() {
				mu.Lock()
				ran++
				mu.Unlock()
			}))
		}
		close(done)
	}))
	<-done
	loop.stop()

	assert.Equal(t, 2, ran)
}

func TestSerializerFullQueueWithLoopReentry(t *testing.T) {
	// Queue of one, many submitters, and every task re-enters invoke from the
	// loop the way completion delivery does. A submitter blocked on the full
	// queue must never hold a lock the loop needs to drain it.
	loop := newSerializer(1)
	loop.start()

	var mu sync.Mutex
	ran := 0
	count := func() {
		mu.Lock()
		ran++
		mu.Unlock()
	}

	g := errgroup.Group{}
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				err := loop.invoke(func() {
					if err := loop.invoke(count); err != nil {
						count()
					}
				})
				if err != nil {
					return err
				}
			}

			return nil
		})
	}
	require.NoError(t, g.Wait())
	loop.stop()

	assert.Equal(t, 800, ran)
}

func TestSerializerConcurrentInvokers(t *testing.T) {
	loop := newSerializer(4)
	loop.start()

	var mu sync.Mutex
	ran := 0
	g := errgroup.Group{}
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				err := loop.invoke(func() {
					mu.Lock()
					ran++
					mu.Unlock()
				})
				if err != nil {
					return err
				}
			}

			return nil
		})
	}
	require.NoError(t, g.Wait())
	loop.stop()

	assert.Equal(t, 400, ran)
}
