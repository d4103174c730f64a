package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDeadLetterHandler_LogsAndAcks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewDeadLetterHandler(zap.New(core))

	err := h.Process(context.Background(), &Message{
		Topic:     "user-events.DLT",
		Partition: 3,
		Offset:    12,
		Value:     []byte("not json"),
		Headers: map[string]string{
			HeaderDLQOriginalTopic: "user-events",
			HeaderDLQError:         "permanent error: bad payload",
		},
	})

	require.NoError(t, err)
	entries := logs.FilterMessage("message reached dead-letter topic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int32(3), fields["partition"])
	assert.Equal(t, int64(12), fields["offset"])
	assert.Equal(t, "not json", fields["payload"])
	assert.Equal(t, "user-events", fields["original_topic"])
}

func TestDeadLetterHandler_NilMessageDoesNotPanic(t *testing.T) {
	h := NewDeadLetterHandler(zap.NewNop())
	assert.NotPanics(t, func() {
		assert.NoError(t, h.Process(context.Background(), nil))
	})
}
