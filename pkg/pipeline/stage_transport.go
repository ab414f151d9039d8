package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ConnectionArgs is everything a transport needs to establish a connection.
// Exactly one of Token and Certificate is set.
type ConnectionArgs struct {
	Host           string
	RegistrationID string
	Scope          string
	Token          string
	Certificate    *Certificate
}

// TransportHandlers receive transport-side occurrences. They may be called
// from any transport goroutine; the transport stage marshals them onto the
// pipeline loop.
type TransportHandlers struct {
	OnMessage          func(topic string, payload []byte)
	OnConnectionChange func(connected bool, cause error)
}

// Transport is the external collaborator implementing the actual protocol
// (MQTT, AMQP, HTTP). The pipeline only speaks the wire operation
// vocabulary to it; calls may block and are never made on the pipeline loop.
// Transports flag retryable failures with Transient.
type Transport interface {
	Connect(ctx context.Context, args ConnectionArgs) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, topic string, payload []byte) error
	Subscribe(handlers TransportHandlers)
}

// TransportStage is the tail of the chain. It consumes the wire operation
// vocabulary, holds the current connection arguments, and runs transport
// calls on a dedicated I/O goroutine so the serialization loop never blocks
// and sends are never reordered relative to each other. Transport callbacks
// become events flowing back up the chain.
type TransportStage struct {
	ChainStage
	transport Transport

	// args are loop-affine: only Run mutates them.
	args    ConnectionArgs
	argsSet bool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	ioClosed bool
	io       chan func()
	ioDone   chan struct{}
}

const ioQueueSize = 64

func NewTransportStage(transport Transport) *TransportStage {
	ctx, cancel := context.WithCancel(context.Background())

	return &TransportStage{
		ChainStage: newChainStage("transport"),
		transport:  transport,
		ctx:        ctx,
		cancel:     cancel,
		io:         make(chan func(), ioQueueSize),
		ioDone:     make(chan struct{}),
	}
}

func (s *TransportStage) start() {
	s.transport.Subscribe(TransportHandlers{
		OnMessage: func(topic string, payload []byte) {
			s.emit(NewMessageReceivedEvent(topic, payload))
		},
		OnConnectionChange: func(connected bool, cause error) {
			s.emit(ConnectionStateChangedEvent{Connected: connected, Cause: cause})
		},
	})
	go s.ioLoop()
}

func (s *TransportStage) stop() {
	s.cancel()
	s.mu.Lock()
	if !s.ioClosed {
		s.ioClosed = true
		close(s.io)
	}
	s.mu.Unlock()
	<-s.ioDone
}

func (s *TransportStage) ioLoop() {
	defer close(s.ioDone)
	for fn := range s.io {
		fn()
	}
}

// emit marshals a transport occurrence onto the loop as an event.
func (s *TransportStage) emit(ev Event) {
	if s.pipe == nil {
		return
	}
	err := s.pipe.loop.invoke(func() { s.HandleEvent(ev) })
	if err != nil {
		s.logger().Debug("event dropped during shutdown", "kind", string(ev.EventKind()))
	}
}

// enqueueIO hands a transport call to the I/O goroutine. The call completes
// op itself; a stage racing shutdown loses the completion to the pending
// sweep.
func (s *TransportStage) enqueueIO(op Operation, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ioClosed {
		completeIfPending(op, errors.Wrapf(ErrShuttingDown, "operation %s[%d]", op.Kind(), op.ID()))

		return
	}
	s.io <- func() {
		completeIfPending(op, fn())
	}
}

func (s *TransportStage) Run(op Operation) {
	s.checkAffinity()

	switch op := op.(type) {
	case *SetConnectionArgsOperation:
		s.args = ConnectionArgs{
			Host:           op.Host,
			RegistrationID: op.RegistrationID,
			Scope:          op.Scope,
			Token:          op.Token,
			Certificate:    op.Certificate,
		}
		s.argsSet = true
		Complete(op, nil)

	case *SetCredentialTokenOperation:
		if !s.argsSet {
			Complete(op, errors.Wrap(ErrConnectionArgsNotSet, "unable to set credential token"))

			return
		}
		s.args.Token = op.Token
		s.args.Certificate = nil
		Complete(op, nil)

	case *SetClientCertificateOperation:
		if !s.argsSet {
			Complete(op, errors.Wrap(ErrConnectionArgsNotSet, "unable to set client certificate"))

			return
		}
		s.args.Certificate = op.Certificate
		s.args.Token = ""
		Complete(op, nil)

	case *ConnectOperation:
		if !s.argsSet {
			Complete(op, errors.Wrap(ErrConnectionArgsNotSet, "unable to connect"))

			return
		}
		args := s.args
		s.enqueueIO(op, func() error {
			return errors.Wrap(s.transport.Connect(s.ctx, args), "transport connect")
		})

	case *DisconnectOperation:
		s.enqueueIO(op, func() error {
			return errors.Wrap(s.transport.Disconnect(s.ctx), "transport disconnect")
		})

	case *SendOperation:
		topic, payload := op.Topic, op.Payload
		s.enqueueIO(op, func() error {
			return errors.Wrapf(s.transport.Send(s.ctx, topic, payload), "transport send to %q", topic)
		})

	default:
		// Tail of the chain: anything unrecognised here is a wiring bug.
		s.ChainStage.Run(op)
	}
}
