package outbox

import (
	"context"
	"maps"
	"sort"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type tracePropagator interface {
	// SaveTraceContext returns headers carrying the trace context of ctx for storage with the row.
	SaveTraceContext(ctx context.Context, headers map[string]string) map[string]string

	// StartPublishSpan restores the stored trace as parent of an outbox.publish
	// span and returns Kafka headers carrying the new span.
	StartPublishSpan(e *Event) (context.Context, trace.Span, []kafka.Header)
}

type otelTracePropagator struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func newTracePropagator(tp trace.TracerProvider) tracePropagator {
	return &otelTracePropagator{
		tracer:     tp.Tracer("outbox"),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (t *otelTracePropagator) SaveTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	if headers == nil {
		headers = make(map[string]string)
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(headers))
	return headers
}

func (t *otelTracePropagator) StartPublishSpan(e *Event) (context.Context, trace.Span, []kafka.Header) {
	ctx := context.Background()
	if len(e.Headers) > 0 {
		ctx = t.propagator.Extract(ctx, propagation.MapCarrier(e.Headers))
	}

	ctx, span := t.tracer.Start(ctx, "outbox.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", e.Topic),
			attribute.Int64("outbox.event.id", e.ID),
			attribute.String("outbox.event.type", e.EventType),
			attribute.Int("outbox.retry_count", e.RetryCount),
		),
	)

	headers := maps.Clone(e.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(headers))
	return ctx, span, toKafkaHeaders(headers)
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}
