package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type offsetStorer interface {
	StoreMessage(m *kafka.Message) (storedOffsets []kafka.TopicPartition, err error)
}

type resultHandler struct {
	log        *zap.Logger
	dlqHandler DLQHandler
	consumer   offsetStorer
	dlqBackoff func() backoff.BackOff
}

func newResultHandler(log *zap.Logger, dlqHandler DLQHandler, consumer offsetStorer) *resultHandler {
	return &resultHandler{
		log:        log,
		dlqHandler: dlqHandler,
		consumer:   consumer,
		dlqBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// handle stores the offset once the message is acknowledged or safely dead-lettered.
// A message interrupted by shutdown keeps its offset so it is redelivered.
func (h *resultHandler) handle(ctx context.Context, err error, message *kafka.Message, span trace.Span) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "message processed successfully")

	case errors.Is(err, ErrSkipMessage):
		span.SetStatus(codes.Ok, "message skipped")
		h.log.Info("skipping message", messageFields(message)...)

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		h.log.Info("processing interrupted, message will be redelivered", messageFields(message)...)
		return

	default:
		span.RecordError(err)
		if errors.Is(err, ErrPermanent) {
			span.SetStatus(codes.Error, "permanent error - sending to DLQ")
			h.log.Error("permanent error - sending message to DLQ", messageFieldsWithError(message, err)...)
		} else {
			span.SetStatus(codes.Error, "message processing failed - sending to DLQ")
			h.log.Error("message processing failed after retries - sending to DLQ", messageFieldsWithError(message, err)...)
		}
		if !h.sendToDLQ(ctx, message, err) {
			return
		}
	}

	h.storeOffset(message)
}

func (h *resultHandler) sendToDLQ(ctx context.Context, message *kafka.Message, processingErr error) bool {
	err := backoff.RetryNotify(func() error {
		return h.dlqHandler.SendToDLQ(ctx, message, processingErr)
	}, backoff.WithContext(h.dlqBackoff(), ctx), func(err error, wait time.Duration) {
		h.log.Error("failed to send message to DLQ, retrying",
			append(messageFieldsWithError(message, err), zap.Duration("backoff", wait))...)
	})
	if err != nil {
		h.log.Warn("gave up sending message to DLQ, message will be redelivered", messageFieldsWithError(message, err)...)
		return false
	}
	return true
}

func (h *resultHandler) storeOffset(message *kafka.Message) {
	if _, err := h.consumer.StoreMessage(message); err != nil {
		h.log.Error("failed to store offset", messageFieldsWithError(message, err)...)
	}
}

func messageFields(message *kafka.Message) []zap.Field {
	return []zap.Field{
		zap.String("key", string(message.Key)),
		zap.Int32("partition", message.TopicPartition.Partition),
		zap.Int64("offset", int64(message.TopicPartition.Offset)),
	}
}

func messageFieldsWithError(message *kafka.Message, err error) []zap.Field {
	return append(messageFields(message), zap.Error(err))
}
