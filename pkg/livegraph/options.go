package livegraph

import (
	"log/slog"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// Option configures an Engine.
type Option func(*Engine)

// WithSource attaches the program pipeline the engine polls each tick.
// Without one the engine only runs programs installed through Apply.
//
// Example:
//
//	ctrl, err := reload.New(reload.Config{Source: "chain/main.go"})
//	eng := livegraph.NewEngine(livegraph.WithSource(ctrl))
func WithSource(src ProgramSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSubmitter sets the render-command sink that receives each frame's
// batched submission. Without one, recorded commands are dropped at end
// of pass.
func WithSubmitter(s Submitter) Option {
	return func(e *Engine) {
		e.submitter = s
	}
}

// WithPresenter sets the presentation sink that receives the designated
// visual output's texture after each pass.
func WithPresenter(p Presenter) Option {
	return func(e *Engine) {
		e.presenter = p
	}
}

// WithStateStore persists operator snapshots so state survives host
// restarts, not just reloads. The store belongs to the caller, who
// closes it after the engine.
//
// Example:
//
//	store, err := statestore.NewSQLiteStore("livegraph-state.db")
//	eng := livegraph.NewEngine(livegraph.WithStateStore(store))
func WithStateStore(store statestore.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithSettings hands a freeform settings map to every loaded program
// via RunContext.Settings. Typically the manifest's settings block.
func WithSettings(cfg config.Config) Option {
	return func(e *Engine) {
		e.settings = cfg
	}
}

// WithAudioFormat sets the audio stream format. Default: 48 kHz stereo,
// 512-frame blocks.
func WithAudioFormat(f AudioFormat) Option {
	return func(e *Engine) {
		e.format = f
	}
}

// WithEventRing sets the capacity of the control-to-audio event ring
// (rounded up to a power of two). Default: 1024.
func WithEventRing(capacity int) Option {
	return func(e *Engine) {
		e.events = NewEventRing(capacity)
	}
}

// WithReporter shares a reporter between the engine and other
// components (the reload controller, a UI overlay). Default: a private
// reporter the engine drains itself.
func WithReporter(r *Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithMetrics sets the metrics recorder. Default: OTel instruments on
// the global meter provider, no-op when unavailable.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracing sets the span manager for reload-phase tracing. Default:
// spans on the global tracer provider.
func WithTracing(s observability.SpanManager) Option {
	return func(e *Engine) {
		e.spans = s
	}
}

// WithSessionID pins the session identifier instead of generating one.
// Reusing an ID across host restarts lets a state store resume that
// session's snapshots.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.sessionID = id
		}
	}
}

// WithParamSidecar applies the parameter sidecar at the given path
// after every boot, before state restore.
func WithParamSidecar(path string) Option {
	return func(e *Engine) {
		e.sidecar = path
	}
}
