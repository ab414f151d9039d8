package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// chainStages wires stages into a chain without a pipeline, for driving a
// stage directly in tests.
func chainStages(stages ...Stage) {
	for i := range stages {
		if i == 0 {
			continue
		}
		stages[i].base().prev = stages[i-1]
		stages[i-1].base().next = stages[i]
	}
}

// captureStage records every operation it receives. With auto set it
// completes each operation with the next scripted error (nil = success).
type captureStage struct {
	ChainStage
	mu     sync.Mutex
	ops    []Operation
	script []error
	auto   bool
}

func newCaptureStage(auto bool, script ...error) *captureStage {
	return &captureStage{
		ChainStage: newChainStage("capture"),
		auto:       auto,
		script:     script,
	}
}

func (s *captureStage) Run(op Operation) {
	s.mu.Lock()
	idx := len(s.ops)
	s.ops = append(s.ops, op)
	var err error
	if idx < len(s.script) {
		err = s.script[idx]
	}
	s.mu.Unlock()
	if s.auto {
		Complete(op, err)
	}
}

func (s *captureStage) captured() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Operation(nil), s.ops...)
}

func (s *captureStage) completeAt(idx int, err error) {
	s.mu.Lock()
	op := s.ops[idx]
	s.mu.Unlock()
	Complete(op, err)
}

type fakeKeySource struct {
	host     string
	id       string
	scope    string
	token    string
	tokenErr error
}

func (f *fakeKeySource) Host() string           { return f.host }
func (f *fakeKeySource) RegistrationID() string { return f.id }
func (f *fakeKeySource) Scope() string          { return f.scope }
func (f *fakeKeySource) CurrentToken() (string, error) {
	return f.token, f.tokenErr
}

type fakeCertSource struct {
	host    string
	id      string
	scope   string
	cert    *Certificate
	certErr error
}

func (f *fakeCertSource) Host() string           { return f.host }
func (f *fakeCertSource) RegistrationID() string { return f.id }
func (f *fakeCertSource) Scope() string          { return f.scope }
func (f *fakeCertSource) Certificate() (*Certificate, error) {
	return f.cert, f.certErr
}

type sentMessage struct {
	topic   string
	payload []byte
}

// fakeTransport is a scriptable Transport. A successful connect or
// disconnect reports the state change through the registered handlers, the
// way a real transport would.
type fakeTransport struct {
	mu           sync.Mutex
	handlers     TransportHandlers
	connectCalls int
	connectErrs  []error
	sendCalls    int
	sendErrs     []error
	disconnects  int
	sends        []sentMessage
	lastArgs     ConnectionArgs
	blockConnect chan struct{}
}

func (f *fakeTransport) Subscribe(handlers TransportHandlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = handlers
}

func (f *fakeTransport) Connect(ctx context.Context, args ConnectionArgs) error {
	f.mu.Lock()
	n := f.connectCalls
	f.connectCalls++
	f.lastArgs = args
	var err error
	if n < len(f.connectErrs) {
		err = f.connectErrs[n]
	}
	handlers := f.handlers
	block := f.blockConnect
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if handlers.OnConnectionChange != nil {
		handlers.OnConnectionChange(true, nil)
	}

	return nil
}

func (f *fakeTransport) Disconnect(_ context.Context) error {
	f.mu.Lock()
	f.disconnects++
	handlers := f.handlers
	f.mu.Unlock()
	if handlers.OnConnectionChange != nil {
		handlers.OnConnectionChange(false, nil)
	}

	return nil
}

func (f *fakeTransport) Send(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.sendCalls
	f.sendCalls++
	if n < len(f.sendErrs) && f.sendErrs[n] != nil {
		return f.sendErrs[n]
	}
	f.sends = append(f.sends, sentMessage{topic: topic, payload: payload})

	return nil
}

func (f *fakeTransport) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentMessage(nil), f.sends...)
}

func (f *fakeTransport) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connectCalls
}

func (f *fakeTransport) pushMessage(topic string, payload []byte) {
	f.mu.Lock()
	handlers := f.handlers
	f.mu.Unlock()
	if handlers.OnMessage != nil {
		handlers.OnMessage(topic, payload)
	}
}

// completionRecorder counts and captures completion callbacks.
type completionRecorder struct {
	count atomic.Int32
	ch    chan error
}

func newCompletionRecorder() *completionRecorder {
	return &completionRecorder{ch: make(chan error, 16)}
}

func (r *completionRecorder) fn() CompletionFunc {
	return func(_ Operation, err error) {
		r.count.Add(1)
		r.ch <- err
	}
}

func (r *completionRecorder) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")

		return nil
	}
}
