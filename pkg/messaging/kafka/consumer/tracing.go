package consumer

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MessageTracer links consumer spans to the producer's trace through Kafka headers.
type MessageTracer interface {
	ExtractContext(ctx context.Context, message *kafka.Message) context.Context
	StartConsumerSpan(ctx context.Context, message *kafka.Message) (context.Context, trace.Span)
	StartDLQSpan(ctx context.Context, message *kafka.Message, dlqTopic string) (context.Context, trace.Span)
	InjectContext(ctx context.Context, message *kafka.Message)
}

type messageTracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func newMessageTracer(tp trace.TracerProvider) MessageTracer {
	return &messageTracer{
		tracer:     tp.Tracer("kafka-consumer"),
		propagator: otel.GetTextMapPropagator(),
	}
}

func headerCarrier(headers []kafka.Header) propagation.MapCarrier {
	carrier := make(propagation.MapCarrier, len(headers))
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return carrier
}

func topicOf(message *kafka.Message) string {
	if message.TopicPartition.Topic == nil {
		return ""
	}
	return *message.TopicPartition.Topic
}

func (t *messageTracer) ExtractContext(ctx context.Context, message *kafka.Message) context.Context {
	if len(message.Headers) == 0 {
		return ctx
	}
	return t.propagator.Extract(ctx, headerCarrier(message.Headers))
}

func (t *messageTracer) StartConsumerSpan(ctx context.Context, message *kafka.Message) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topicOf(message)),
			attribute.Int("messaging.partition", int(message.TopicPartition.Partition)),
			attribute.Int64("messaging.offset", int64(message.TopicPartition.Offset)),
			attribute.String("messaging.message.key", string(message.Key)),
		),
	)
}

func (t *messageTracer) StartDLQSpan(ctx context.Context, message *kafka.Message, dlqTopic string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "kafka.send_to_dlq",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", dlqTopic),
			attribute.String("messaging.source.topic", topicOf(message)),
			attribute.Int("messaging.source.partition", int(message.TopicPartition.Partition)),
			attribute.Int64("messaging.source.offset", int64(message.TopicPartition.Offset)),
		),
	)
}

// InjectContext overwrites trace headers in place and keeps every other header and its order.
func (t *messageTracer) InjectContext(ctx context.Context, message *kafka.Message) {
	carrier := propagation.MapCarrier{}
	t.propagator.Inject(ctx, carrier)
	if len(carrier) == 0 {
		return
	}

	kept := message.Headers[:0:0]
	for _, h := range message.Headers {
		if _, replaced := carrier[h.Key]; !replaced {
			kept = append(kept, h)
		}
	}
	for _, key := range carrier.Keys() {
		kept = append(kept, kafka.Header{Key: key, Value: []byte(carrier.Get(key))})
	}
	message.Headers = kept
}
