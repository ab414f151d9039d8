package measure

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromMeasureCountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPromMeasure(reg, "test-pipeline")
	require.NoError(t, err)

	m.ObserveOperation("send-telemetry", 10*time.Millisecond, nil)
	m.ObserveOperation("send-telemetry", 20*time.Millisecond, nil)
	m.ObserveOperation("send-telemetry", 30*time.Millisecond, assert.AnError)

	ok := m.operations.WithLabelValues("send-telemetry", "ok")
	failed := m.operations.WithLabelValues("send-telemetry", "error")
	assert.Equal(t, float64(2), testutil.ToFloat64(ok))
	assert.Equal(t, float64(1), testutil.ToFloat64(failed))
}

func TestPromMeasureCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPromMeasure(reg, "test-pipeline")
	require.NoError(t, err)

	m.ObserveEvent("message-received")
	m.ObserveEvent("message-received")

	counter := m.events.WithLabelValues("message-received")
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestPromMeasureDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromMeasure(reg, "test-pipeline")
	require.NoError(t, err)

	// Same registry, same pipeline id: the collectors collide.
	_, err = NewPromMeasure(reg, "test-pipeline")
	assert.Error(t, err)
}

func TestPromMeasureSharedRegistryDistinctPipelines(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromMeasure(reg, "pipeline-a")
	require.NoError(t, err)

	_, err = NewPromMeasure(reg, "pipeline-b")
	assert.NoError(t, err)
}
