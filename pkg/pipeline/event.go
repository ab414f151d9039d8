package pipeline

import "github.com/google/uuid"

// EventKind discriminates the closed set of events the transport boundary
// can emit upward.
type EventKind string

const (
	EventConnectionStateChanged EventKind = "connection-state-changed"
	EventMessageReceived        EventKind = "message-received"
)

// Event is an unsolicited occurrence flowing up the stage chain. Events are
// never completed: they propagate until a stage consumes them or they reach
// the pipeline's registered sink.
type Event interface {
	EventKind() EventKind
}

// ConnectionStateChangedEvent reports the transport connection going up or
// down. Cause is nil for a deliberate state change.
type ConnectionStateChangedEvent struct {
	Connected bool
	Cause     error
}

func (ConnectionStateChangedEvent) EventKind() EventKind { return EventConnectionStateChanged }

// MessageReceivedEvent carries one inbound message from the transport.
type MessageReceivedEvent struct {
	ID      uuid.UUID
	Topic   string
	Payload []byte
}

func (MessageReceivedEvent) EventKind() EventKind { return EventMessageReceived }

// NewMessageReceivedEvent assigns the event a fresh identifier for tracing.
func NewMessageReceivedEvent(topic string, payload []byte) MessageReceivedEvent {
	return MessageReceivedEvent{
		ID:      uuid.New(),
		Topic:   topic,
		Payload: payload,
	}
}
