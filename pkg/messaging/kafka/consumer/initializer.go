package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type topicConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
}

// initializer subscribes to the topic and waits until its metadata is visible.
type initializer struct {
	consumer         topicConsumer
	topic            string
	log              *zap.Logger
	timeoutSeconds   int
	failOnTopicError bool
	pollInterval     time.Duration
}

func newInitializer(consumer topicConsumer, topic string, log *zap.Logger, timeoutSeconds int, failOnTopicError bool) *initializer {
	return &initializer{
		consumer:         consumer,
		topic:            topic,
		log:              log,
		timeoutSeconds:   timeoutSeconds,
		failOnTopicError: failOnTopicError,
		pollInterval:     2 * time.Second,
	}
}

func (i *initializer) initialize(ctx context.Context) error {
	if err := i.consumer.SubscribeTopics([]string{i.topic}, i.onRebalance); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", i.topic, err)
	}
	i.log.Info("subscribed to topic")

	if i.timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(i.timeoutSeconds)*time.Second)
		defer cancel()
	}

	err := backoff.RetryNotify(i.checkTopic, backoff.WithContext(backoff.NewConstantBackOff(i.pollInterval), ctx),
		func(err error, _ time.Duration) {
			i.log.Warn("topic not ready, retrying", zap.Error(err))
		})
	if err == nil {
		return nil
	}
	if i.failOnTopicError {
		return fmt.Errorf("topic %s not ready: %w", i.topic, err)
	}
	i.log.Warn("topic not ready, continuing anyway", zap.Error(err))
	return nil
}

func (i *initializer) checkTopic() error {
	metadata, err := i.consumer.GetMetadata(&i.topic, false, 5000)
	if err != nil {
		return fmt.Errorf("failed to get topic metadata: %w", err)
	}

	topicMeta, ok := metadata.Topics[i.topic]
	switch {
	case !ok:
		return fmt.Errorf("topic %s not found in metadata", i.topic)
	case topicMeta.Error.Code() != kafka.ErrNoError:
		return fmt.Errorf("topic %s has error: %s", i.topic, topicMeta.Error.String())
	case len(topicMeta.Partitions) == 0:
		return fmt.Errorf("topic %s has no partitions", i.topic)
	}

	i.log.Info("topic is ready", zap.Int("partitions", len(topicMeta.Partitions)))
	return nil
}

func (i *initializer) onRebalance(_ *kafka.Consumer, event kafka.Event) error {
	switch ev := event.(type) {
	case kafka.AssignedPartitions:
		i.logPartitions("partitions assigned", ev.Partitions)
	case kafka.RevokedPartitions:
		i.logPartitions("partitions revoked", ev.Partitions)
	}
	return nil
}

func (i *initializer) logPartitions(event string, partitions []kafka.TopicPartition) {
	ids := make([]int32, len(partitions))
	for idx, p := range partitions {
		ids[idx] = p.Partition
	}
	i.log.Info(event, zap.Int32s("partitions", ids))
}
