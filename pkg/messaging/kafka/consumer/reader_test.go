package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedReader struct {
	mu    sync.Mutex
	steps []func() (*kafka.Message, error)
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return step()
}

func TestReader_ForwardsMessagesAndSkipsTransientErrors(t *testing.T) {
	src := &scriptedReader{steps: []func() (*kafka.Message, error){
		func() (*kafka.Message, error) { return testMessage("user-events", 0, 0), nil },
		func() (*kafka.Message, error) {
			return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
		},
		func() (*kafka.Message, error) {
			return nil, kafka.NewError(kafka.ErrLeaderNotAvailable, "leader", false)
		},
		func() (*kafka.Message, error) { return testMessage("user-events", 0, 1), nil },
	}}
	ch := make(chan *kafka.Message, 4)
	r := newReader(src, ch, zap.NewNop())
	r.pause[readErrorLeader] = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	first, second := <-ch, <-ch
	cancel()

	assert.NoError(t, <-done)
	assert.Equal(t, kafka.Offset(0), first.TopicPartition.Offset)
	assert.Equal(t, kafka.Offset(1), second.TopicPartition.Offset)
}

func TestReader_StopsOnFatalError(t *testing.T) {
	fatal := kafka.NewError(kafka.ErrFatal, "fenced", true)
	src := &scriptedReader{steps: []func() (*kafka.Message, error){
		func() (*kafka.Message, error) { return nil, fatal },
	}}
	r := newReader(src, make(chan *kafka.Message), zap.NewNop())

	err := r.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
}

func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		timeout   bool
		fatal     bool
		temporary bool
		key       string
	}{
		{name: "timeout", err: kafka.NewError(kafka.ErrTimedOut, "", false), timeout: true},
		{name: "fatal", err: kafka.NewError(kafka.ErrFatal, "", true), fatal: true, key: "fatal"},
		{name: "unknown topic", err: kafka.NewError(kafka.ErrUnknownTopicOrPart, "", false), temporary: true, key: "topic_not_found"},
		{name: "brokers down", err: kafka.NewError(kafka.ErrAllBrokersDown, "", false), temporary: true, key: "broker_connection"},
		{name: "leader", err: kafka.NewError(kafka.ErrNotLeaderForPartition, "", false), temporary: true, key: "leader_election"},
		{name: "non kafka", err: errors.New("io"), key: "non_kafka_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rerr := classifyReadError(tt.err)
			require.NotNil(t, rerr)
			assert.Equal(t, tt.timeout, rerr.isTimeout())
			assert.Equal(t, tt.fatal, rerr.isFatal())
			assert.Equal(t, tt.temporary, rerr.isTemporary())
			assert.Equal(t, tt.key, rerr.key)
			assert.ErrorIs(t, rerr, tt.err)
		})
	}

	assert.Nil(t, classifyReadError(nil))
}
