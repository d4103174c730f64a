package consumer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/simdev/taskhub/pkg/messaging/kafka/producer"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Diagnostic headers added to every dead-lettered message.
const (
	HeaderDLQOriginalTopic     = "dlq.original.topic"
	HeaderDLQOriginalPartition = "dlq.original.partition"
	HeaderDLQOriginalOffset    = "dlq.original.offset"
	HeaderDLQError             = "dlq.error"
	HeaderDLQTimestamp         = "dlq.timestamp"
)

// DLQHandler copies messages that could not be processed to a dead-letter topic.
type DLQHandler interface {
	SendToDLQ(ctx context.Context, message *kafka.Message, processingErr error) error
}

type dlqHandler struct {
	producer producer.Producer
	dlqTopic string
	tracer   MessageTracer
	log      *zap.Logger
	now      func() time.Time
}

func newDLQHandler(p producer.Producer, dlqTopic string, tracer MessageTracer, log *zap.Logger) *dlqHandler {
	return &dlqHandler{
		producer: p,
		dlqTopic: dlqTopic,
		tracer:   tracer,
		log:      log,
		now:      time.Now,
	}
}

func (h *dlqHandler) buildMessage(message *kafka.Message, processingErr error) *kafka.Message {
	headers := make([]kafka.Header, 0, len(message.Headers)+5)
	headers = append(headers, message.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDLQOriginalTopic, Value: []byte(topicOf(message))},
		kafka.Header{Key: HeaderDLQOriginalPartition, Value: []byte(strconv.FormatInt(int64(message.TopicPartition.Partition), 10))},
		kafka.Header{Key: HeaderDLQOriginalOffset, Value: []byte(strconv.FormatInt(int64(message.TopicPartition.Offset), 10))},
		kafka.Header{Key: HeaderDLQError, Value: []byte(processingErr.Error())},
		kafka.Header{Key: HeaderDLQTimestamp, Value: []byte(h.now().UTC().Format(time.RFC3339))},
	)

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &h.dlqTopic, Partition: kafka.PartitionAny},
		Key:            message.Key,
		Value:          message.Value,
		Headers:        headers,
	}
}

// SendToDLQ blocks until the broker confirms the copy or ctx is done.
func (h *dlqHandler) SendToDLQ(ctx context.Context, message *kafka.Message, processingErr error) error {
	ctx, span := h.tracer.StartDLQSpan(ctx, message, h.dlqTopic)
	defer span.End()

	dlqMessage := h.buildMessage(message, processingErr)
	h.tracer.InjectContext(ctx, dlqMessage)

	deliveryChan := make(chan kafka.Event, 1)
	if err := h.producer.Produce(dlqMessage, deliveryChan); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message to DLQ")
		return err
	}

	var e kafka.Event
	select {
	case e = <-deliveryChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event %T", e)
	}
	if m.TopicPartition.Error != nil {
		span.RecordError(m.TopicPartition.Error)
		span.SetStatus(codes.Error, "failed to deliver message to DLQ")
		return fmt.Errorf("failed to deliver message to %s: %w", h.dlqTopic, m.TopicPartition.Error)
	}

	span.SetStatus(codes.Ok, "message sent to DLQ")
	h.log.Info("message sent to DLQ",
		zap.String("dlq_topic", h.dlqTopic),
		zap.String("key", string(message.Key)),
		zap.Int32("original_partition", message.TopicPartition.Partition),
		zap.Int64("original_offset", int64(message.TopicPartition.Offset)))
	return nil
}

type noopDLQHandler struct {
	log *zap.Logger
}

func newNoopDLQHandler(log *zap.Logger) *noopDLQHandler {
	return &noopDLQHandler{log: log}
}

func (h *noopDLQHandler) SendToDLQ(_ context.Context, message *kafka.Message, processingErr error) error {
	h.log.Error("DLQ not configured, dropping message",
		zap.String("key", string(message.Key)),
		zap.Int32("partition", message.TopicPartition.Partition),
		zap.Int64("offset", int64(message.TopicPartition.Offset)),
		zap.Error(processingErr))
	return nil
}
