package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore("tracker-service", core)

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithSessionID(ctx, "sess-1")
	log.Info(ctx, "tracking_started", "  Tracking started ", map[string]any{"interval_ms": 10000})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()

	assert.Equal(t, "Tracking started", entry.Message)
	assert.Equal(t, "tracker-service", fields["service"])
	assert.Equal(t, "tracking_started", fields["action"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "sess-1", fields["session_id"])
	assert.Contains(t, fields, "details")
}

func TestLoggerErrorAttachesError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore("", core)

	log.Error(context.Background(), "", "boom", errors.New("provider gone"), nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "unknown-service", fields["service"])
	assert.Equal(t, "unspecified", fields["action"])

	errObj, ok := fields["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "provider gone", errObj["msg"])
	assert.NotContains(t, fields, "request_id")
}
