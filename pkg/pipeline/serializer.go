package pipeline

import (
	"sync"

	"github.com/askiada/go-devicelink/internal/affinity"
)

const defaultQueueSize = 128

// serializer is the pipeline's single serialization context. Every stage
// method runs on its loop goroutine; callers from arbitrary goroutines
// marshal work in through invoke. Tasks run strictly in submission order.
type serializer struct {
	gate affinity.Gate

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup

	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
}

func newSerializer(queueSize int) *serializer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &serializer{
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *serializer) start() {
	go s.run()
}

func (s *serializer) run() {
	s.gate.Bind()
	defer s.gate.Release()
	defer close(s.done)

	for fn := range s.tasks {
		fn()
	}
}

// invoke schedules fn onto the loop, blocking while the queue is full. It
// fails with ErrShuttingDown once stop has been called; fn is then
// guaranteed not to run.
//
// The mutex covers only the closed check and the sender accounting, never
// the send itself: the loop re-enters invoke to schedule completion
// callbacks, so a submitter blocked on a full queue must not hold a lock the
// loop needs to drain it.
func (s *serializer) invoke(fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return ErrShuttingDown
	}
	s.senders.Add(1)
	s.mu.Unlock()
	defer s.senders.Done()

	if s.gate.Held() {
		// Scheduling from the loop itself must never block on the queue:
		// the loop is the only consumer. Under overflow, run inline; we are
		// already serialized.
		select {
		case s.tasks <- fn:
		default:
			fn()
		}

		return nil
	}

	select {
	case s.tasks <- fn:
		return nil
	case <-s.quit:
		return ErrShuttingDown
	}
}

func (s *serializer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// stop rejects further submissions, runs everything already enqueued, and
// waits for the loop goroutine to exit. Safe to call more than once.
func (s *serializer) stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// Release submitters blocked on a full queue, then wait for every
		// in-flight submission to land or abort. Only then is closing the
		// task channel safe; the loop drains whatever landed and exits.
		close(s.quit)
		s.senders.Wait()
		close(s.tasks)
	})
	<-s.done
}
