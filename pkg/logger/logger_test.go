package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	ctx := WithConversationID(WithUserID(WithRequestID(context.Background(), "r1"), "u1"), "c9")
	l.Warn(ctx, "mark read failed", zap.Int("count", 2))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "mark read failed", entry.Message)
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "c9", fields["conversation_id"])
	assert.Equal(t, "r1", fields["request_id"])
	assert.EqualValues(t, 2, fields["count"])
}

func TestGlobalLoggerFallsBackToNop(t *testing.T) {
	SetGlobalLogger(nil)
	require.NotNil(t, GetGlobalLogger())
	GetGlobalLogger().Info(context.Background(), "discarded")
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "r1", RequestID(WithRequestID(context.Background(), "r1")))
	assert.Regexp(t, `^[0-9a-f]{32}$`, NewRequestID())
}
