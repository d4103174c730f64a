package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LogFields returns trace_id and span_id for the span in ctx, or nil when
// there is none, so log lines can be joined with traces.
func LogFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// WithSpan starts a span and returns a func that ends it, recording err if non-nil.
//
//	ctx, end := tracing.WithSpan(ctx, tracer, "tasks.create")
//	defer func() { end(err) }()
func WithSpan(ctx context.Context, tracer trace.Tracer, spanName string, opts ...trace.SpanStartOption) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, spanName, opts...)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
