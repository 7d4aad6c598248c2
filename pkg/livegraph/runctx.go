package livegraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// AudioFormat describes the stream the audio callback renders into.
// Operators size their block buffers from it during Init.
type AudioFormat struct {
	// SampleRate in frames per second.
	SampleRate int

	// Channels per frame. Samples are interleaved.
	Channels int

	// BlockFrames is the number of frames per callback block.
	BlockFrames int
}

// BlockSamples returns the interleaved sample count of one block.
func (f AudioFormat) BlockSamples() int { return f.BlockFrames * f.Channels }

// RunContext is the runtime handle passed to program entry points and to
// every operator Init. It carries the services a program needs to build
// and run a chain: the chain being populated, the operator factory
// registry, the control-to-audio event ring, the error reporter, and the
// host's logger, settings, and state store.
//
// A fresh RunContext is created for each load; the identity fields
// (session, build) let log lines and snapshots be correlated across
// reloads of the same session.
type RunContext struct {
	ctx       context.Context
	logger    *slog.Logger
	chain     *Chain
	factories *OperatorRegistry
	events    *EventRing
	reporter  *Reporter
	store     statestore.Store
	settings  config.Config
	sessionID string
	build     int
	audio     AudioFormat
}

// runContextConfig collects everything a RunContext carries. The engine
// fills it per load; tests fill only what they exercise.
type runContextConfig struct {
	ctx       context.Context
	logger    *slog.Logger
	chain     *Chain
	factories *OperatorRegistry
	events    *EventRing
	reporter  *Reporter
	store     statestore.Store
	settings  config.Config
	sessionID string
	build     int
	audio     AudioFormat
}

func newRunContext(cfg runContextConfig) *RunContext {
	return &RunContext{
		ctx:       cfg.ctx,
		logger:    cfg.logger,
		chain:     cfg.chain,
		factories: cfg.factories,
		events:    cfg.events,
		reporter:  cfg.reporter,
		store:     cfg.store,
		settings:  cfg.settings,
		sessionID: cfg.sessionID,
		build:     cfg.build,
		audio:     cfg.audio,
	}
}

// Context returns the host's context for cancellation during setup and
// initialization. Never nil.
func (rc *RunContext) Context() context.Context {
	if rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// Logger returns the structured logger, enriched with session and build
// attributes. Never nil.
func (rc *RunContext) Logger() *slog.Logger {
	if rc.logger == nil {
		return slog.Default()
	}
	return rc.logger
}

// Chain returns the chain this program populates and runs.
func (rc *RunContext) Chain() *Chain { return rc.chain }

// Factories returns the operator factory registry. Registrations are
// cleared before each reload so a fresh load never sees factories from
// a previous artifact.
func (rc *RunContext) Factories() *OperatorRegistry { return rc.factories }

// Events returns the control-to-audio event ring. Pushing is only valid
// from the control side; the audio callback drains it at block start.
func (rc *RunContext) Events() *EventRing { return rc.events }

// Reporter returns the non-blocking error reporter.
func (rc *RunContext) Reporter() *Reporter { return rc.reporter }

// Store returns the snapshot store, or nil when persistence is not
// configured.
func (rc *RunContext) Store() statestore.Store { return rc.store }

// Settings returns the freeform project settings from the manifest.
// Never nil; reads on an empty config return the caller's default.
func (rc *RunContext) Settings() config.Config {
	if rc.settings == nil {
		return config.Config{}
	}
	return rc.settings
}

// SessionID returns the host session identifier, stable across reloads.
func (rc *RunContext) SessionID() string { return rc.sessionID }

// Build returns the build number of the loaded artifact (0 for a static
// program).
func (rc *RunContext) Build() int { return rc.build }

// Audio returns the audio stream format.
func (rc *RunContext) Audio() AudioFormat { return rc.audio }

// NewOperator creates an operator through the factory registry and adds
// it to the chain under instanceName. It is the data-driven counterpart
// of constructing a node directly and calling Chain.Add.
func (rc *RunContext) NewOperator(typeName, instanceName string) (Operator, error) {
	op, err := rc.factories.New(typeName, instanceName)
	if err != nil {
		return nil, err
	}
	rc.chain.Add(instanceName, op)
	return op, nil
}
