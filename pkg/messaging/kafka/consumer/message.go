package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// HeaderEventType carries the event type on every message produced by the outbox.
const HeaderEventType = "event-type"

var (
	// ErrSkipMessage acknowledges a message without processing it further.
	ErrSkipMessage = errors.New("skip message")
	// ErrPermanent marks a failure that retrying cannot fix. The message goes
	// straight to the dead-letter topic.
	ErrPermanent = errors.New("permanent error")
)

// Message is the broker-agnostic view of an inbound record handed to a Handler.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the header value or an empty string.
func (m *Message) Header(key string) string {
	return m.Headers[key]
}

// EventType returns the value of the event-type header.
func (m *Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// IdempotencyKey identifies the record uniquely within the cluster.
func (m *Message) IdempotencyKey() string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

func newMessage(km *kafka.Message) *Message {
	m := &Message{
		Partition: km.TopicPartition.Partition,
		Offset:    int64(km.TopicPartition.Offset),
		Key:       km.Key,
		Value:     km.Value,
		Headers:   make(map[string]string, len(km.Headers)),
		Timestamp: km.Timestamp,
	}
	if km.TopicPartition.Topic != nil {
		m.Topic = *km.TopicPartition.Topic
	}
	for _, h := range km.Headers {
		m.Headers[h.Key] = string(h.Value)
	}
	return m
}

// Handler processes one inbound message. A nil return acknowledges it.
type Handler interface {
	Process(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Process(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}
