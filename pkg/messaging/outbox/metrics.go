package outbox

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	published metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	reclaimed metric.Int64Counter
	swept     metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/simdev/taskhub/outbox")
	m := &metrics{}
	var err error

	if m.published, err = meter.Int64Counter("outbox.events.published",
		metric.WithDescription("Outbox events confirmed by the broker")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("outbox.events.failed",
		metric.WithDescription("Outbox events that exhausted their retries")); err != nil {
		return nil, err
	}
	if m.retried, err = meter.Int64Counter("outbox.events.retried",
		metric.WithDescription("Failed attempts returned to PENDING")); err != nil {
		return nil, err
	}
	if m.reclaimed, err = meter.Int64Counter("outbox.events.reclaimed",
		metric.WithDescription("PROCESSING events released after the confirmation timeout")); err != nil {
		return nil, err
	}
	if m.swept, err = meter.Int64Counter("outbox.events.swept",
		metric.WithDescription("PUBLISHED events removed by retention")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordOutcome(ctx context.Context, topic string, status Status) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	if status == StatusFailed {
		m.failed.Add(ctx, 1, attrs)
		return
	}
	m.retried.Add(ctx, 1, attrs)
}
