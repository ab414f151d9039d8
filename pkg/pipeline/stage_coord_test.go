package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorStageLowersTelemetry(t *testing.T) {
	coord := NewCoordinatorStage()
	tail := newCaptureStage(false)
	chainStages(coord, tail)

	recorder := newCompletionRecorder()
	op, err := NewSendTelemetryOperation([]byte(`{"temp":21.5}`), map[string]string{"unit": "C"}, recorder.fn())
	require.NoError(t, err)

	coord.Run(op)

	captured := tail.captured()
	require.Len(t, captured, 1)
	send, ok := captured[0].(*SendOperation)
	require.True(t, ok)
	assert.Equal(t, TelemetryTopic, send.Topic)

	var envelope telemetryEnvelope
	require.NoError(t, json.Unmarshal(send.Payload, &envelope))
	assert.Equal(t, map[string]string{"unit": "C"}, envelope.Properties)
	assert.Equal(t, []byte(`{"temp":21.5}`), envelope.Body)

	tail.completeAt(0, nil)
	assert.NoError(t, recorder.wait(t))
	assert.True(t, op.Completed())
}

func TestCoordinatorStageLowersBlobUpload(t *testing.T) {
	coord := NewCoordinatorStage()
	tail := newCaptureStage(false)
	chainStages(coord, tail)

	data := []byte("blob-bytes")
	op, err := NewUploadBlobOperation("firmware.bin", data, nil)
	require.NoError(t, err)

	coord.Run(op)

	captured := tail.captured()
	require.Len(t, captured, 1)
	send, ok := captured[0].(*SendOperation)
	require.True(t, ok)
	assert.Equal(t, BlobTopicPrefix+"firmware.bin", send.Topic)
	assert.Equal(t, data, send.Payload)
}

func TestCoordinatorStageLowersMethodResponse(t *testing.T) {
	coord := NewCoordinatorStage()
	tail := newCaptureStage(false)
	chainStages(coord, tail)

	op, err := NewMethodResponseOperation("req-7", 200, []byte(`"ok"`), nil)
	require.NoError(t, err)

	coord.Run(op)

	captured := tail.captured()
	require.Len(t, captured, 1)
	send, ok := captured[0].(*SendOperation)
	require.True(t, ok)
	assert.Equal(t, MethodResponseTopicPrefix+"req-7", send.Topic)

	var envelope methodResponseEnvelope
	require.NoError(t, json.Unmarshal(send.Payload, &envelope))
	assert.Equal(t, 200, envelope.Status)
	assert.Equal(t, []byte(`"ok"`), envelope.Body)
}

func TestCoordinatorStageSendFailurePropagates(t *testing.T) {
	coord := NewCoordinatorStage()
	tail := newCaptureStage(true, assert.AnError)
	chainStages(coord, tail)

	recorder := newCompletionRecorder()
	op, err := NewSendTelemetryOperation([]byte("data"), nil, recorder.fn())
	require.NoError(t, err)

	coord.Run(op)

	require.ErrorIs(t, recorder.wait(t), assert.AnError)
	assert.ErrorIs(t, op.Err(), assert.AnError)
}

func TestCoordinatorStagePassesWireKindsThrough(t *testing.T) {
	coord := NewCoordinatorStage()
	tail := newCaptureStage(false)
	chainStages(coord, tail)

	op, err := NewSendOperation("custom/topic", []byte("raw"), nil)
	require.NoError(t, err)

	coord.Run(op)

	captured := tail.captured()
	require.Len(t, captured, 1)
	assert.Same(t, op, captured[0])
}
