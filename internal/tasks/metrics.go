package tasks

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type taskMetrics struct {
	created   metric.Int64Counter
	updated   metric.Int64Counter
	deleted   metric.Int64Counter
	retrieved metric.Int64Counter
	duration  metric.Float64Histogram
}

func newTaskMetrics(mp metric.MeterProvider) (*taskMetrics, error) {
	meter := mp.Meter(instrumentationName)

	created, err := meter.Int64Counter("task.created.total", metric.WithDescription("Tasks created"))
	if err != nil {
		return nil, err
	}
	updated, err := meter.Int64Counter("task.updated.total", metric.WithDescription("Tasks updated"))
	if err != nil {
		return nil, err
	}
	deleted, err := meter.Int64Counter("task.deleted.total",
		metric.WithDescription("Tasks deleted, including cascades from user deletions"))
	if err != nil {
		return nil, err
	}
	retrieved, err := meter.Int64Counter("task.retrieval.total", metric.WithDescription("Task reads"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("task.operation.duration",
		metric.WithDescription("Duration of task operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &taskMetrics{
		created:   created,
		updated:   updated,
		deleted:   deleted,
		retrieved: retrieved,
		duration:  duration,
	}, nil
}

func (m *taskMetrics) observe(ctx context.Context, op string, start time.Time) {
	m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("operation", op)))
}
