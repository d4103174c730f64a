package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestDurationView(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(durationView([]float64{0.1, 1})),
	)
	meter := mp.Meter("test")

	d, err := meter.Float64Histogram("task.operation.duration")
	require.NoError(t, err)
	other, err := meter.Float64Histogram("payload.size")
	require.NoError(t, err)
	d.Record(ctx, 0.05)
	other.Record(ctx, 0.05)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	bounds := map[string][]float64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		h, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok, m.Name)
		bounds[m.Name] = h.DataPoints[0].Bounds
	}
	assert.Equal(t, []float64{0.1, 1}, bounds["task.operation.duration"])
	assert.NotEqual(t, []float64{0.1, 1}, bounds["payload.size"])
}
