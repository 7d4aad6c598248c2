/*
Package livegraph provides a dependency-graph scheduler for live-coded
media programs.

# Overview

livegraph executes a chain of operators (oscillators, filters, texture
generators, mixers) as a directed graph: edges come from operator input
references, execution order from a deterministic topological sort. The
same chain is scheduled across two domains with different rules:

  - Visual domain: pushed once per frame from the host's frame loop,
    batched through a command submitter.
  - Audio domain: pulled block-by-block from a real-time callback that
    never allocates, locks, or blocks.

On top of the scheduler sits a live-recompilation loop: the host watches
a chain source file, recompiles it on change, swaps the running program,
and carries operator state across the swap. A broken edit never kills
the session; the previous program keeps running until a fixed one
compiles.

# Basic Usage

A program is a Setup function that populates a chain, plus an optional
per-frame Update. Hand both to an engine and tick it:

	func setup(rc *livegraph.RunContext) error {
	    osc := synth.NewOscillator("osc")
	    gain := synth.NewGain("gain")
	    gain.SetInput(0, osc)

	    rc.Chain().Add("osc", osc).Add("gain", gain)
	    rc.Chain().SetAudioOutput("gain")
	    return rc.Chain().Err()
	}

	func main() {
	    engine := livegraph.NewEngine()
	    defer engine.Close()

	    err := engine.Apply(context.Background(), &livegraph.Program{Setup: setup})
	    if err != nil {
	        log.Fatal(err)
	    }
	    if err := engine.Run(context.Background(), 16*time.Millisecond); err != nil {
	        log.Fatal(err)
	    }
	}

Chain construction is fluent and defers errors: Add and Wire record the
first mistake, Err and Init surface it.

# Operators

Concrete operators embed Base and override the lifecycle calls they
need. Kind declares what the operator outputs; Audio-kind operators
additionally implement AudioRenderer, visual ones TextureProvider:

	type Gain struct {
	    livegraph.Base
	    livegraph.ParamSet
	    out []float32
	}

	func NewGain(name string) *Gain {
	    return &Gain{
	        Base:     livegraph.NewBase(name, livegraph.KindAudio),
	        ParamSet: livegraph.NewParamSet(livegraph.ParamSpec{Name: "level", Min: 0, Max: 1, Default: 0.8}),
	    }
	}

	func (g *Gain) Init(rc *livegraph.RunContext) error {
	    g.out = make([]float32, rc.Audio().BlockSamples())
	    return nil
	}

	func (g *Gain) RenderBlock(ac *livegraph.AudioContext) error { ... }
	func (g *Gain) OutputSamples() []float32                     { return g.out }

Operators whose runtime state should survive a reload implement
Stateful; snapshots are opaque bytes keyed by operator name.

# Hot Reload

Wire a reload.Controller in as the engine's program source. The engine
polls it every tick; on a detected change it saves operator state, tears
the chain down, asks the controller for a fresh program, and boots it:

	ctrl, err := reload.New(reload.Config{Source: "chain/main.go"})
	if err != nil {
	    log.Fatal(err)
	}
	defer ctrl.Close()

	engine := livegraph.NewEngine(livegraph.WithSource(ctrl))
	defer engine.Close()
	engine.Run(ctx, 16*time.Millisecond)

Compile failures keep the previous program running and drop a
.livegraph-errors.json next to the source with parsed diagnostics. Load
failures leave nothing running until the next successful reload, because
the previous artifact has to be unloaded before its replacement can be
loaded.

# Audio

The audio callback pulls blocks from the engine's AudioGraph:

	stream.OnRender(func(out []float32) {
	    engine.Audio().RenderBlock(out)
	})

RenderBlock runs operators in Audio order and copies the designated
output's samples out. When no program is loaded, or an operator fails
mid-block, the block is filled with silence. Control events (notes,
parameter nudges) reach the audio thread through the engine's EventRing,
a fixed-capacity single-producer single-consumer queue that drops on
overflow rather than block.

# State Across Reloads

Snapshots keyed by operator name survive the reload handshake in memory;
with a store configured they also survive host restarts:

	store, err := statestore.NewSQLiteStore("./state.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	engine := livegraph.NewEngine(
	    livegraph.WithSource(ctrl),
	    livegraph.WithStateStore(store),
	)

A snapshot whose operator no longer exists after the reload is dropped
silently; renaming an operator in source is how state gets discarded on
purpose.

# Observability

The engine logs milestones through log/slog and records OpenTelemetry
metrics and spans:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	engine := livegraph.NewEngine(
	    livegraph.WithSource(ctrl),
	    livegraph.WithLogger(logger),
	)

Logs carry structured fields: session_id, build, frame, duration_ms.
Metrics: livegraph.frames, livegraph.compiles, livegraph.reloads,
livegraph.audio.dsp_load, etc. Traces: livegraph.reload > compile/load
phase spans.

# Error Handling

Operator failures carry the operator name and lifecycle phase; reload
failures carry build number and compiler output:

	var opErr *livegraph.OperatorError
	if errors.As(err, &opErr) {
	    log.Printf("operator %s failed during %s: %v", opErr.Operator, opErr.Op, opErr.Err)
	}

	var compileErr *reload.CompileError
	if errors.As(err, &compileErr) {
	    log.Printf("build %d failed:\n%s", compileErr.Build, compileErr.Output)
	}

Panics in operators and program entry points are recovered and converted
to PanicError with a stack trace; one misbehaving operator never takes
the host down.

# Thread Safety

  - Chain is confined to the control goroutine; never mutate it while
    the engine runs.
  - AudioGraph.RenderBlock is for the audio callback thread only;
    SetProgram, ClearProgram, and Quiesce belong to the control
    goroutine.
  - EventRing is single-producer (control) single-consumer (audio).
  - Reporter is safe for concurrent use from any goroutine.
  - statestore implementations are safe for concurrent use.

# Subpackages

  - config: manifest file and per-operator settings loading
  - observability: logging, metrics, and tracing helpers
  - reload: source watching, compilation, and artifact loading
  - statestore: operator snapshot storage (memory, SQLite)
*/
package livegraph
