package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func testMessage(topic string, partition int32, offset int64) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: kafka.Offset(offset)},
		Key:            []byte("user-1"),
		Value:          []byte(`{"eventType":"DELETED","userId":1}`),
		Headers:        []kafka.Header{{Key: HeaderEventType, Value: []byte("user.deleted")}},
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "test")
	return span
}

type fakeProducer struct {
	mu         sync.Mutex
	produced   []*kafka.Message
	produceErr error
	deliverErr error
}

func (p *fakeProducer) Produce(msg *kafka.Message, ch chan kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.produceErr != nil {
		return p.produceErr
	}
	p.produced = append(p.produced, msg)
	delivered := *msg
	delivered.TopicPartition.Error = p.deliverErr
	ch <- &delivered
	return nil
}

func (p *fakeProducer) Close() {}

func (p *fakeProducer) messages() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.produced...)
}

type fakeOffsetStorer struct {
	mu     sync.Mutex
	stored []int64
}

func (s *fakeOffsetStorer) StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, int64(m.TopicPartition.Offset))
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (s *fakeOffsetStorer) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.stored...)
}

type fakeDLQ struct {
	mu       sync.Mutex
	sent     []*kafka.Message
	errs     []error
	failures int
}

func (d *fakeDLQ) SendToDLQ(_ context.Context, m *kafka.Message, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("broker unavailable")
	}
	d.sent = append(d.sent, m)
	d.errs = append(d.errs, err)
	return nil
}

func (d *fakeDLQ) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}
