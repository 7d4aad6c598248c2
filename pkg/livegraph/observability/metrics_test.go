package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordOperator(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records call count", func(t *testing.T) {
		m.RecordOperator(ctx, "blur", 2*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "livegraph.operator.calls")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "operator" && attr.Value.AsString() == "blur" {
					found = true
					assert.GreaterOrEqual(t, dp.Value, int64(1))
				}
			}
		}
		assert.True(t, found, "Expected to find datapoint for operator=blur")
	})

	t.Run("records latency", func(t *testing.T) {
		m.RecordOperator(ctx, "gain", 500*time.Microsecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "livegraph.operator.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		m.RecordOperator(ctx, "failing", time.Millisecond, errors.New("shader error"))

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "livegraph.operator.errors")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "operator" && attr.Value.AsString() == "failing" {
					found = true
				}
			}
		}
		assert.True(t, found, "Expected to find error datapoint")
	})

	t.Run("does not record error when nil", func(t *testing.T) {
		m.RecordOperator(ctx, "clean_only", time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "livegraph.operator.errors")
		if metric != nil {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if ok {
				for _, dp := range sum.DataPoints {
					for _, attr := range dp.Attributes.ToSlice() {
						if attr.Key == "operator" {
							assert.NotEqual(t, "clean_only", attr.Value.AsString())
						}
					}
				}
			}
		}
	})
}

func TestRecordFrame(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFrame(ctx, 16*time.Millisecond, 0)
	m.RecordFrame(ctx, 20*time.Millisecond, 2)

	rm := collectMetrics(t, reader)

	metric := findMetric(rm, "livegraph.frames")
	require.NotNil(t, metric)
	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	// One datapoint per clean/dirty attribute value.
	var clean, dirty int64
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "clean" {
				if attr.Value.AsBool() {
					clean = dp.Value
				} else {
					dirty = dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), clean)
	assert.Equal(t, int64(1), dirty)

	latency := findMetric(rm, "livegraph.frame.duration_ms")
	require.NotNil(t, latency)
}

func TestRecordCompile(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCompile(ctx, true, 800*time.Millisecond)
	m.RecordCompile(ctx, false, 200*time.Millisecond)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "livegraph.compiles")
	require.NotNil(t, metric)

	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2, "success and failure are separate series")

	latency := findMetric(rm, "livegraph.compile.duration_ms")
	require.NotNil(t, latency)
}

func TestRecordReload(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordReload(context.Background(), true, time.Second)

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, "livegraph.reloads"))
	require.NotNil(t, findMetric(rm, "livegraph.reload.duration_ms"))
}

func TestRecordAudioStats(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("no drops records no drop counter", func(t *testing.T) {
		m.RecordAudioStats(ctx, 0.25, 0.6, 0)

		rm := collectMetrics(t, reader)
		load := findMetric(rm, "livegraph.audio.dsp_load")
		require.NotNil(t, load)

		hist, ok := load.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 2, "smoothed and peak are separate series")

		assert.Nil(t, findMetric(rm, "livegraph.audio.dropped_events"))
	})

	t.Run("drops recorded when present", func(t *testing.T) {
		m.RecordAudioStats(ctx, 0.25, 0.6, 5)

		rm := collectMetrics(t, reader)
		dropped := findMetric(rm, "livegraph.audio.dropped_events")
		require.NotNil(t, dropped)

		sum, ok := dropped.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.NotEmpty(t, sum.DataPoints)
		assert.Equal(t, int64(5), sum.DataPoints[0].Value)
	})
}

func TestRecordSnapshot(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordSnapshot(context.Background(), "osc", 256)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "livegraph.state.snapshot_bytes")
	require.NotNil(t, metric)

	hist, ok := metric.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)

	found := false
	for _, dp := range hist.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "operator" && attr.Value.AsString() == "osc" {
				found = true
			}
		}
	}
	assert.True(t, found, "Expected snapshot size keyed by operator")
}
