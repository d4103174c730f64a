package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTopicConsumer struct {
	subscribeErr error
	subscribed   []string
	metadata     []func() (*kafka.Metadata, error)
	calls        int
}

func (f *fakeTopicConsumer) SubscribeTopics(topics []string, _ kafka.RebalanceCb) error {
	f.subscribed = topics
	return f.subscribeErr
}

func (f *fakeTopicConsumer) GetMetadata(*string, bool, int) (*kafka.Metadata, error) {
	idx := f.calls
	if idx >= len(f.metadata) {
		idx = len(f.metadata) - 1
	}
	f.calls++
	return f.metadata[idx]()
}

func readyTopic(topic string) func() (*kafka.Metadata, error) {
	return func() (*kafka.Metadata, error) {
		return &kafka.Metadata{Topics: map[string]kafka.TopicMetadata{
			topic: {Topic: topic, Partitions: []kafka.PartitionMetadata{{ID: 0}}},
		}}, nil
	}
}

func missingTopic() (*kafka.Metadata, error) {
	return &kafka.Metadata{Topics: map[string]kafka.TopicMetadata{}}, nil
}

func newTestInitializer(c topicConsumer, timeout int, failOnError bool) *initializer {
	i := newInitializer(c, "user-events", zap.NewNop(), timeout, failOnError)
	i.pollInterval = time.Millisecond
	return i
}

func TestInitializer_WaitsForTopic(t *testing.T) {
	c := &fakeTopicConsumer{metadata: []func() (*kafka.Metadata, error){
		func() (*kafka.Metadata, error) { return nil, errors.New("no brokers") },
		missingTopic,
		readyTopic("user-events"),
	}}

	require.NoError(t, newTestInitializer(c, 5, true).initialize(context.Background()))
	assert.Equal(t, []string{"user-events"}, c.subscribed)
	assert.Equal(t, 3, c.calls)
}

func TestInitializer_TopicNeverAppears(t *testing.T) {
	t.Run("fails when required", func(t *testing.T) {
		c := &fakeTopicConsumer{metadata: []func() (*kafka.Metadata, error){missingTopic}}
		err := newTestInitializer(c, 1, true).initialize(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "topic user-events not ready")
	})

	t.Run("continues when optional", func(t *testing.T) {
		c := &fakeTopicConsumer{metadata: []func() (*kafka.Metadata, error){missingTopic}}
		assert.NoError(t, newTestInitializer(c, 1, false).initialize(context.Background()))
	})
}

func TestInitializer_SubscribeError(t *testing.T) {
	c := &fakeTopicConsumer{subscribeErr: errors.New("closed")}
	err := newTestInitializer(c, 1, false).initialize(context.Background())
	assert.ErrorContains(t, err, "failed to subscribe")
}
