package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records livegraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when
// disabled. Recorders are only called from control-side threads; the
// audio callback exports its numbers through atomics that the engine
// forwards here between frames.
type MetricsRecorder interface {
	// RecordOperator records one operator Process call with its duration
	// and error status.
	RecordOperator(ctx context.Context, operator string, duration time.Duration, err error)

	// RecordFrame records a completed frame pass.
	RecordFrame(ctx context.Context, duration time.Duration, operatorErrors int)

	// RecordCompile records an external build attempt.
	RecordCompile(ctx context.Context, success bool, duration time.Duration)

	// RecordReload records a full reload attempt (compile through entry
	// point resolution).
	RecordReload(ctx context.Context, success bool, duration time.Duration)

	// RecordAudioStats records the audio domain's load numbers sampled
	// off the callback thread. droppedEvents is the number of events
	// dropped since the previous sample, not the ring's running total.
	RecordAudioStats(ctx context.Context, dspLoad, dspPeak float64, droppedEvents uint64)

	// RecordSnapshot records one saved operator state snapshot.
	RecordSnapshot(ctx context.Context, operator string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	operatorCalls   metric.Int64Counter
	operatorLatency metric.Float64Histogram
	operatorErrors  metric.Int64Counter
	frames          metric.Int64Counter
	frameLatency    metric.Float64Histogram
	compiles        metric.Int64Counter
	compileLatency  metric.Float64Histogram
	reloads         metric.Int64Counter
	reloadLatency   metric.Float64Histogram
	dspLoad         metric.Float64Histogram
	droppedEvents   metric.Int64Counter
	snapshotSize    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("livegraph")

	operatorCalls, err := meter.Int64Counter("livegraph.operator.calls",
		metric.WithDescription("Number of operator Process calls"),
	)
	if err != nil {
		return nil, err
	}

	operatorLatency, err := meter.Float64Histogram("livegraph.operator.latency_ms",
		metric.WithDescription("Operator Process latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	operatorErrors, err := meter.Int64Counter("livegraph.operator.errors",
		metric.WithDescription("Number of operator call failures"),
	)
	if err != nil {
		return nil, err
	}

	frames, err := meter.Int64Counter("livegraph.frames",
		metric.WithDescription("Number of completed frame passes"),
	)
	if err != nil {
		return nil, err
	}

	frameLatency, err := meter.Float64Histogram("livegraph.frame.duration_ms",
		metric.WithDescription("Frame pass duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	compiles, err := meter.Int64Counter("livegraph.compiles",
		metric.WithDescription("Number of external build attempts"),
	)
	if err != nil {
		return nil, err
	}

	compileLatency, err := meter.Float64Histogram("livegraph.compile.duration_ms",
		metric.WithDescription("External build duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reloads, err := meter.Int64Counter("livegraph.reloads",
		metric.WithDescription("Number of reload attempts"),
	)
	if err != nil {
		return nil, err
	}

	reloadLatency, err := meter.Float64Histogram("livegraph.reload.duration_ms",
		metric.WithDescription("Reload duration from change detection to entry-point resolution"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dspLoad, err := meter.Float64Histogram("livegraph.audio.dsp_load",
		metric.WithDescription("Fraction of the audio block budget spent rendering"),
	)
	if err != nil {
		return nil, err
	}

	droppedEvents, err := meter.Int64Counter("livegraph.audio.dropped_events",
		metric.WithDescription("Control events dropped because the ring was full"),
	)
	if err != nil {
		return nil, err
	}

	snapshotSize, err := meter.Int64Histogram("livegraph.state.snapshot_bytes",
		metric.WithDescription("Operator state snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		operatorCalls:   operatorCalls,
		operatorLatency: operatorLatency,
		operatorErrors:  operatorErrors,
		frames:          frames,
		frameLatency:    frameLatency,
		compiles:        compiles,
		compileLatency:  compileLatency,
		reloads:         reloads,
		reloadLatency:   reloadLatency,
		dspLoad:         dspLoad,
		droppedEvents:   droppedEvents,
		snapshotSize:    snapshotSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordOperator records one operator Process call.
func (m *otelMetrics) RecordOperator(ctx context.Context, operator string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operator", operator),
	}

	m.operatorCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operatorLatency.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))

	if err != nil {
		m.operatorErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordFrame records a completed frame pass.
func (m *otelMetrics) RecordFrame(ctx context.Context, duration time.Duration, operatorErrors int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("clean", operatorErrors == 0),
	}
	m.frames.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.frameLatency.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordCompile records an external build attempt.
func (m *otelMetrics) RecordCompile(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.compiles.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.compileLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordReload records a full reload attempt.
func (m *otelMetrics) RecordReload(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.reloads.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.reloadLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordAudioStats records audio load numbers sampled off the callback.
func (m *otelMetrics) RecordAudioStats(ctx context.Context, dspLoad, dspPeak float64, droppedEvents uint64) {
	m.dspLoad.Record(ctx, dspLoad)
	m.dspLoad.Record(ctx, dspPeak, metric.WithAttributes(attribute.Bool("peak", true)))
	if droppedEvents > 0 {
		m.droppedEvents.Add(ctx, int64(droppedEvents))
	}
}

// RecordSnapshot records one saved state snapshot.
func (m *otelMetrics) RecordSnapshot(ctx context.Context, operator string, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("operator", operator)))
}
