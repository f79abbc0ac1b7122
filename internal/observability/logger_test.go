package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawless-ai/internal/observability"
)

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	observability.Configure(&buf, "info")

	ctx := observability.WithRequestID(context.Background(), "req-1")
	observability.LoggerFromContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "hello", line["msg"])
}

func TestConfigureFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	observability.Configure(&buf, "warn")

	observability.Logger().Info("dropped")
	assert.Zero(t, buf.Len())

	observability.Logger().Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWatermillAdapterWritesErrors(t *testing.T) {
	var buf bytes.Buffer
	l := observability.Configure(&buf, "debug")

	a := observability.NewWatermillAdapter(l).With(watermill.LogFields{"topic": "state"})
	a.Error("publish failed", errors.New("closed"), watermill.LogFields{"message_uuid": "m1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "state", line["topic"])
	assert.Equal(t, "m1", line["message_uuid"])
	assert.Equal(t, "closed", line["error"])
	assert.Equal(t, "events", line["component"])
}

func TestLinesCarryServiceName(t *testing.T) {
	var buf bytes.Buffer
	observability.Configure(&buf, "debug")

	observability.WithFields("component", "test").Debug("tagged")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lawless", line["service"])
	assert.Equal(t, "test", line["component"])
}
