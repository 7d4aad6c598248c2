package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the livegraph tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("livegraph")

// SpanManager handles trace span lifecycle for the reload pipeline.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when
// disabled. Frame and audio execution are deliberately unspanned: at
// 60 frames and hundreds of audio blocks per second, per-pass spans
// would swamp any backend.
type SpanManager interface {
	// StartReloadSpan starts a span covering one reload: change
	// detection through entry-point resolution.
	StartReloadSpan(ctx context.Context, source string, build int) (context.Context, trace.Span)

	// StartPhaseSpan starts a child span for one reload phase
	// ("compile", "load", "setup", "restore").
	StartPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartReloadSpan starts a span covering one reload.
func (m *otelSpanManager) StartReloadSpan(ctx context.Context, source string, build int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "livegraph.reload",
		trace.WithAttributes(
			attribute.String("source", source),
			attribute.Int("build", build),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPhaseSpan starts a child span for one reload phase.
func (m *otelSpanManager) StartPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "livegraph.reload."+phase,
		trace.WithAttributes(
			attribute.String("phase", phase),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
