package pipeline

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Topics of the wire vocabulary. The transport is free to map them onto its
// own addressing scheme.
const (
	TelemetryTopic            = "devices/telemetry"
	BlobTopicPrefix           = "devices/blob/"
	MethodResponseTopicPrefix = "devices/methods/res/"
)

type telemetryEnvelope struct {
	Properties map[string]string `json:"properties,omitempty"`
	Body       []byte            `json:"body"`
}

type methodResponseEnvelope struct {
	Status int    `json:"status"`
	Body   []byte `json:"body,omitempty"`
}

// CoordinatorStage lowers client operations into the wire vocabulary the
// transport boundary understands, and sequences a connect in front of any
// send issued while the connection is down. It also watches connection-state
// events to keep the pipeline's shared connection flag current before
// passing them on up.
type CoordinatorStage struct {
	ChainStage
}

func NewCoordinatorStage() *CoordinatorStage {
	return &CoordinatorStage{ChainStage: newChainStage("coordinator")}
}

func (s *CoordinatorStage) Run(op Operation) {
	s.checkAffinity()

	switch op := op.(type) {
	case *SendTelemetryOperation:
		payload, err := json.Marshal(telemetryEnvelope{Properties: op.Properties, Body: op.Payload})
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to encode telemetry envelope"))

			return
		}
		s.lower(op, TelemetryTopic, payload)

	case *UploadBlobOperation:
		s.lower(op, BlobTopicPrefix+op.BlobName, op.Data)

	case *MethodResponseOperation:
		payload, err := json.Marshal(methodResponseEnvelope{Status: op.Status, Body: op.Payload})
		if err != nil {
			Complete(op, errors.Wrap(err, "unable to encode method response envelope"))

			return
		}
		s.lower(op, MethodResponseTopicPrefix+op.RequestID, payload)

	default:
		s.ChainStage.Run(op)
	}
}

// lower delegates op into a wire-level send, prefixed by a connect when the
// connection is down. The ordering matters: the send is only issued once the
// connect completed successfully.
func (s *CoordinatorStage) lower(op Operation, topic string, payload []byte) {
	send, err := NewSendOperation(topic, payload, nil)
	if err != nil {
		Complete(op, errors.Wrap(err, "unable to build send operation"))

		return
	}
	if s.pipe != nil && !s.pipe.isConnected() {
		DelegateSequence(s, op, NewConnectOperation(nil), send)

		return
	}
	Delegate(s, op, send)
}

func (s *CoordinatorStage) HandleEvent(ev Event) {
	s.checkAffinity()
	if state, ok := ev.(ConnectionStateChangedEvent); ok && s.pipe != nil {
		s.pipe.setConnected(state.Connected)
	}
	s.ChainStage.HandleEvent(ev)
}
