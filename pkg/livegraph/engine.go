package livegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// SetupFunc is a program's graph-construction entry point. It runs once
// per load into a fresh chain: register factories, add operators, wire
// them, designate outputs. It must not start goroutines that outlive
// the call.
type SetupFunc func(rc *RunContext) error

// UpdateFunc is a program's per-frame control entry point. It runs on
// the frame thread before the frame pass: tweak parameters, push
// events, mark nodes dirty.
type UpdateFunc func(rc *RunContext) error

// Program is a runnable pair of entry points plus the identity of the
// artifact they came from. Static programs (no reload pipeline) leave
// Build zero and Path empty.
type Program struct {
	Setup  SetupFunc
	Update UpdateFunc
	Build  int
	Path   string
}

// ProgramSource produces fresh programs from an artifact pipeline.
// reload.Controller is the production implementation; tests substitute
// fakes.
type ProgramSource interface {
	// Changed reports whether the watched source changed since the last
	// check. The first successful check after startup counts as a
	// change.
	Changed() (bool, error)

	// Reload rebuilds the source and swaps artifacts. The returned
	// program is whatever is active afterwards: the fresh program on
	// success; the previous one when compiling failed (it stays
	// loaded); nil when loading failed (nothing is active). The error
	// describes the failure.
	Reload(ctx context.Context) (*Program, error)
}

// Engine hosts a live session: it polls the program source, performs
// the reload handshake (preserve state, quiesce audio, tear down, boot
// the fresh program, restore state), and drives the per-frame pass.
//
// All Engine methods run on one control goroutine, conventionally the
// host's frame loop. The audio callback runs elsewhere and only ever
// touches the AudioGraph.
type Engine struct {
	source    ProgramSource
	submitter Submitter
	presenter Presenter
	store     statestore.Store
	settings  config.Config
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	reporter  *Reporter
	events    *EventRing
	registry  *OperatorRegistry
	frame     *FrameExecutor
	audio     *AudioGraph
	format    AudioFormat
	sessionID string
	sidecar   string

	program     *Program
	chain       *Chain
	runCtx      *RunContext
	preserved   StateMap
	lastErr     error
	lastReport  Report
	reported    bool
	lastDropped uint64
}

// NewEngine creates an engine from options. With no options it runs
// silent and static: no program source, default audio format, in-memory
// state only, and observability through whatever global OTel providers
// are installed.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.sessionID == "" {
		e.sessionID = uuid.NewString()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetricsRecorder()
	}
	if e.spans == nil {
		e.spans = observability.NewSpanManager()
	}
	if e.reporter == nil {
		e.reporter = NewReporter(0)
	}
	if e.events == nil {
		e.events = NewEventRing(0)
	}
	e.registry = NewOperatorRegistry()
	e.audio = NewAudioGraph(e.format, e.events, e.reporter)
	e.format = e.audio.Format()
	e.frame = NewFrameExecutor(e.submitter, e.presenter, e.logger, e.metrics, e.reporter)
	return e
}

// SessionID returns the engine's session identifier, stable across
// reloads.
func (e *Engine) SessionID() string { return e.sessionID }

// Chain returns the currently running chain, or nil between programs.
func (e *Engine) Chain() *Chain { return e.chain }

// Program returns the active program, or nil when nothing is loaded.
func (e *Engine) Program() *Program { return e.program }

// Audio returns the audio graph. The platform audio callback calls its
// RenderBlock.
func (e *Engine) Audio() *AudioGraph { return e.audio }

// Events returns the control-to-audio event ring.
func (e *Engine) Events() *EventRing { return e.events }

// Reporter returns the failure reporter. The engine drains it each
// tick; hosts that want raw reports can drain it themselves instead of
// relying on LastReport.
func (e *Engine) Reporter() *Reporter { return e.reporter }

// Registry returns the operator factory registry.
func (e *Engine) Registry() *OperatorRegistry { return e.registry }

// Frame returns the number of frames executed for the current program.
func (e *Engine) Frame() uint64 { return e.frame.Frame() }

// Err returns the most recent reload, setup, or validation failure, or
// nil while healthy. It is display material: the engine keeps ticking
// regardless.
func (e *Engine) Err() error { return e.lastErr }

// LastReport returns the most recently drained failure report.
func (e *Engine) LastReport() (Report, bool) { return e.lastReport, e.reported }

// Apply installs a program directly, without a ProgramSource, running
// the same handshake a reload performs: preserve state, quiesce audio,
// tear down the old chain, boot the new program, restore state.
func (e *Engine) Apply(ctx context.Context, p *Program) error {
	if p == nil || p.Setup == nil {
		return fmt.Errorf("livegraph: program requires a Setup entry point")
	}
	e.preserve(ctx)
	e.teardown(ctx)
	e.program = p
	err := e.bootProgram(ctx)
	e.drainReports()
	return err
}

// Tick runs one iteration of the host loop: poll the source (reloading
// on change), run the program's Update, execute the frame pass, export
// audio stats, and drain failure reports.
//
// The returned error aggregates this tick's failures. None are fatal;
// the engine keeps running and the next tick proceeds normally.
func (e *Engine) Tick(ctx context.Context) error {
	var errs []error

	if e.source != nil {
		if err := e.pollSource(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if e.program != nil && e.program.Update != nil && e.chain != nil {
		if err := callEntry(e.program.Update, e.runCtx, "update"); err != nil {
			e.reporter.Publish(Report{Source: "update", Err: err, Time: time.Now()})
			errs = append(errs, err)
		}
	}

	if e.frame.HasProgram() {
		if err := e.frame.RunFrame(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	e.exportAudioStats(ctx)
	e.drainReports()
	return errors.Join(errs...)
}

// Run ticks the engine at the given interval until ctx is canceled.
// Hosts with their own render loop call Tick from it instead.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Tick failures are reported and logged; the loop keeps going.
			_ = e.Tick(ctx)
		}
	}
}

// Close preserves state one final time, quiesces the audio callback,
// and tears down the running chain, so a restarted host can resume the
// session from the store. The state store, if any, belongs to the
// caller and stays open.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e.preserve(ctx)
	e.teardown(ctx)
	e.program = nil
	return nil
}

// pollSource checks the watcher and performs the full reload handshake
// when the source changed.
func (e *Engine) pollSource(ctx context.Context) error {
	changed, err := e.source.Changed()
	if err != nil {
		return fmt.Errorf("watching source: %w", err)
	}
	if !changed {
		return nil
	}
	return e.reloadProgram(ctx)
}

// reloadProgram is the ordered handshake around a source change. State
// is captured and the old chain torn down while the old artifact is
// still loaded: its code must stay mapped until its operators are
// gone. Only then does the source compile and swap artifacts.
func (e *Engine) reloadProgram(ctx context.Context) error {
	e.preserve(ctx)
	e.teardown(ctx)

	program, err := e.source.Reload(ctx)
	e.program = program
	if err != nil {
		if program == nil {
			// Load failure: nothing is active until the next good build.
			e.lastErr = err
			return err
		}
		// Compile failure: the previous artifact is still loaded, so
		// boot it again and keep running last-known-good. The failure is
		// recorded after the boot, which would otherwise clear it.
		if bootErr := e.bootProgram(ctx); bootErr != nil {
			e.lastErr = errors.Join(err, bootErr)
			return e.lastErr
		}
		e.lastErr = err
		return err
	}
	if program == nil {
		return nil
	}
	return e.bootProgram(ctx)
}

// preserve captures state from the running chain into the carry-over
// map and, when a store is configured, persists it. Parameter values go
// to the sidecar on the same occasions.
func (e *Engine) preserve(ctx context.Context) {
	if e.chain == nil {
		return
	}
	if e.sidecar != "" {
		if err := SaveParams(e.chain, e.sidecar); err != nil {
			e.logger.Warn("param sidecar not saved", "error", err)
		}
	}
	states, err := e.chain.SaveStates()
	if err != nil {
		e.logger.Warn("state save incomplete", "error", err)
	}
	if len(states) == 0 {
		return
	}
	if e.preserved == nil {
		e.preserved = make(StateMap, len(states))
	}
	for name, data := range states {
		e.preserved[name] = data
	}
	observability.LogStateSaved(e.logger, len(states))

	if e.store == nil {
		return
	}
	build := 0
	if e.program != nil {
		build = e.program.Build
	}
	if err := PersistStates(e.store, e.sessionID, build, states); err != nil {
		e.logger.Warn("state persistence incomplete", "error", err)
	}
	for name, data := range states {
		e.metrics.RecordSnapshot(ctx, name, int64(len(data)))
	}
}

// teardown quiesces the audio callback, clears both execution programs,
// and destroys the chain and factory registrations. After it returns,
// nothing references operator code from the outgoing artifact.
func (e *Engine) teardown(ctx context.Context) {
	if err := e.audio.Quiesce(ctx); err != nil {
		e.logger.Warn("audio quiesce interrupted", "error", err)
	}
	e.frame.ClearProgram()
	if e.chain != nil {
		e.chain.Cleanup()
		e.chain = nil
	}
	e.runCtx = nil
	e.registry.Clear()
}

// bootProgram brings the active program up: Setup into a fresh chain,
// fail-closed Init, parameter sidecar, state restore, then program
// publication to both domains. Any failure leaves both domains without
// a program rather than running a half-built chain.
func (e *Engine) bootProgram(ctx context.Context) error {
	if e.program == nil || e.program.Setup == nil {
		return fmt.Errorf("livegraph: program has no Setup entry point")
	}
	build := e.program.Build
	logger := observability.EnrichLogger(e.logger, e.sessionID, build)

	sctx, span := e.spans.StartPhaseSpan(ctx, "setup")
	chain := NewChain()
	rc := newRunContext(runContextConfig{
		ctx:       sctx,
		logger:    logger,
		chain:     chain,
		factories: e.registry,
		events:    e.events,
		reporter:  e.reporter,
		store:     e.store,
		settings:  e.settings,
		sessionID: e.sessionID,
		build:     build,
		audio:     e.format,
	})
	err := callEntry(e.program.Setup, rc, "setup")
	e.spans.EndSpanWithError(span, err)
	if err != nil {
		chain.Cleanup()
		e.fail("setup", err)
		return err
	}

	if err := chain.Init(rc); err != nil {
		e.fail("graph", err)
		return err
	}

	if e.sidecar != "" {
		if n, err := LoadParams(chain, e.sidecar); err != nil {
			logger.Warn("param sidecar not applied", "error", err)
		} else if n > 0 {
			logger.Debug("param sidecar applied", "values", n)
		}
	}

	states := e.preserved
	if len(states) == 0 && e.store != nil {
		persisted, err := LoadPersistedStates(e.store, e.sessionID)
		if err != nil {
			logger.Warn("persisted state not loaded", "error", err)
		} else {
			states = persisted
		}
	}
	if len(states) > 0 {
		_, span := e.spans.StartPhaseSpan(ctx, "restore")
		restored, dropped, err := chain.RestoreStates(states)
		e.spans.EndSpanWithError(span, err)
		if err != nil {
			logger.Warn("state restore incomplete", "error", err)
		}
		observability.LogStateRestored(logger, restored, dropped)
	}
	e.preserved = nil

	visual, err := chain.VisualOrder()
	if err != nil {
		e.fail("graph", err)
		return err
	}
	audioOrder, err := chain.AudioOrder()
	if err != nil {
		e.fail("graph", err)
		return err
	}

	var visualOut, audioOut Operator
	if name := chain.VisualOutput(); name != "" {
		visualOut, _ = chain.Get(name)
	}
	if name := chain.AudioOutput(); name != "" {
		audioOut, _ = chain.Get(name)
	}

	if err := e.audio.SetProgram(audioOrder, audioOut); err != nil {
		chain.Cleanup()
		e.fail("graph", err)
		return err
	}
	e.frame.SetProgram(visual, visualOut)
	e.chain = chain
	e.runCtx = rc
	e.lastErr = nil
	observability.LogChainReady(logger, chain.Len(), len(visual), len(audioOrder))
	return nil
}

// fail records a non-fatal failure for display and reporting.
func (e *Engine) fail(source string, err error) {
	e.lastErr = err
	e.reporter.Publish(Report{Source: source, Err: err, Time: time.Now()})
	observability.LogChainError(e.logger, err)
}

// exportAudioStats forwards callback health to the metrics recorder.
// DroppedEvents is cumulative on the ring; the counter gets the delta
// since the previous tick.
func (e *Engine) exportAudioStats(ctx context.Context) {
	s := e.audio.Stats()
	dropped := s.DroppedEvents - e.lastDropped
	e.lastDropped = s.DroppedEvents
	e.metrics.RecordAudioStats(ctx, s.Load, s.Peak, dropped)
}

// maxReportsPerTick bounds report draining so a failure flood cannot
// stall the frame loop.
const maxReportsPerTick = 32

// drainReports mirrors queued failure reports to the log and keeps the
// latest for display.
func (e *Engine) drainReports() {
	for i := 0; i < maxReportsPerTick; i++ {
		rep, ok := e.reporter.TryNext()
		if !ok {
			return
		}
		e.lastReport = rep
		e.reported = true
		if rep.Operator != "" {
			observability.LogOperatorError(e.logger, rep.Operator, rep.Source, rep.Err)
		} else {
			e.logger.Error("stage failed", "source", rep.Source, "error", rep.Err)
		}
	}
}

// callEntry isolates one entry-point call, converting a panic into a
// PanicError. Entry points arrive from a reloadable artifact; a
// panicking program must report, not crash the host.
func callEntry(fn func(*RunContext) error, rc *RunContext, op string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(op, r)
		}
	}()
	return fn(rc)
}
