package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// State is the controller's lifecycle phase.
type State uint8

const (
	// StateIdle: created, no build attempted yet.
	StateIdle State = iota

	// StateCompiling: a build is running.
	StateCompiling

	// StateLoading: an artifact is being loaded and its entry points
	// resolved.
	StateLoading

	// StateReady: an artifact is loaded and active.
	StateReady

	// StateError: the last compile or load failed. The next detected
	// change returns to StateCompiling.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Config configures a Controller. Source is required; everything else
// has working defaults.
type Config struct {
	// Source is the watched chain source file.
	Source string

	// BuildDir receives compiled artifacts. Default: a .livegraph-build
	// directory next to Source.
	BuildDir string

	// Builder compiles Source. Default: a CommandBuilder building a Go
	// plugin.
	Builder Builder

	// Loader opens compiled artifacts. Default: PluginLoader.
	Loader ModuleLoader

	// SetupSymbol and UpdateSymbol are the entry point names resolved
	// from each artifact. Defaults: "Setup" and "Update".
	SetupSymbol  string
	UpdateSymbol string

	// KeepArtifacts is how many compiled artifacts survive pruning.
	// Default: 3.
	KeepArtifacts int

	// AddonsDir, when set and the builder is a CommandBuilder, is
	// scanned for addon include/lib directories.
	AddonsDir string

	// Logger receives reload milestones. Optional.
	Logger *slog.Logger

	// Metrics records compile and reload outcomes. Default: OTel
	// instruments on the global meter provider.
	Metrics observability.MetricsRecorder

	// Spans traces reload phases. Default: the global tracer provider.
	Spans observability.SpanManager

	// Reporter receives compile and load failures. Optional.
	Reporter *livegraph.Reporter
}

// Controller is the live-recompilation state machine. Each detected
// source change compiles into a uniquely named artifact (the build
// counter only ever goes up, so no loader cache can serve stale code),
// unloads the previous artifact, loads the new one, and resolves its
// two entry points.
//
// Failures are non-fatal and asymmetric on purpose: a compile failure
// leaves the previous artifact loaded and active, while a load failure
// ends with no active artifact because the previous one was already
// unloaded when loading began.
//
// Controller implements livegraph.ProgramSource. Methods are
// serialized; the engine calls them from its control goroutine.
type Controller struct {
	mu           sync.Mutex
	watcher      *Watcher
	builder      Builder
	loader       ModuleLoader
	workspace    *Workspace
	setupSymbol  string
	updateSymbol string
	diagPath     string

	state   State
	build   int
	lastErr error
	module  Module
	active  *livegraph.Program

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	reporter *livegraph.Reporter
}

var _ livegraph.ProgramSource = (*Controller)(nil)

// New creates a controller for the given configuration, creating the
// build directory if needed.
func New(cfg Config) (*Controller, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("reload: source is required")
	}

	buildDir := cfg.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join(filepath.Dir(cfg.Source), ".livegraph-build")
	}
	workspace, err := NewWorkspace(buildDir, cfg.KeepArtifacts)
	if err != nil {
		return nil, err
	}

	builder := cfg.Builder
	if builder == nil {
		builder = NewCommandBuilder()
	}
	if cfg.AddonsDir != "" {
		if cb, ok := builder.(*CommandBuilder); ok {
			cb.DiscoverAddons(cfg.AddonsDir)
		}
	}

	loader := cfg.Loader
	if loader == nil {
		loader = PluginLoader{}
	}

	setupSymbol := cfg.SetupSymbol
	if setupSymbol == "" {
		setupSymbol = "Setup"
	}
	updateSymbol := cfg.UpdateSymbol
	if updateSymbol == "" {
		updateSymbol = "Update"
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetricsRecorder()
	}
	spans := cfg.Spans
	if spans == nil {
		spans = observability.NewSpanManager()
	}

	return &Controller{
		watcher:      NewWatcher(cfg.Source),
		builder:      builder,
		loader:       loader,
		workspace:    workspace,
		setupSymbol:  setupSymbol,
		updateSymbol: updateSymbol,
		diagPath:     filepath.Join(filepath.Dir(cfg.Source), DiagnosticsFileName),
		state:        StateIdle,
		logger:       cfg.Logger,
		metrics:      metrics,
		spans:        spans,
		reporter:     cfg.Reporter,
	}, nil
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Build returns the monotonic build counter: the number of reload
// attempts, successful or not.
func (c *Controller) Build() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build
}

// LastError returns the most recent compile or load failure, or nil
// when the controller is Ready.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Active returns the active program, or nil when no artifact is loaded.
func (c *Controller) Active() *livegraph.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ForceReload makes the next Changed call report a change without an
// edit to the source.
func (c *Controller) ForceReload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watcher.Invalidate()
}

// Changed implements livegraph.ProgramSource.
func (c *Controller) Changed() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher.Check()
}

// Reload implements livegraph.ProgramSource: compile the source into a
// fresh artifact, unload the previous artifact, load the new one, and
// resolve its entry points.
//
// Canceling ctx supersedes the attempt: the build is killed, no state
// transition to Error happens, and the previous artifact stays active.
// The newer change that caused the cancellation triggers its own
// reload.
func (c *Controller) Reload(ctx context.Context) (*livegraph.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.build++
	build := c.build
	observability.LogReloadTriggered(c.logger, c.watcher.Path(), build)
	rctx, reloadSpan := c.spans.StartReloadSpan(ctx, c.watcher.Path(), build)
	start := time.Now()

	program, err := c.reloadLocked(rctx, build)

	c.metrics.RecordReload(rctx, err == nil, time.Since(start))
	c.spans.EndSpanWithError(reloadSpan, err)

	switch {
	case err == nil:
		c.state = StateReady
		c.lastErr = nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		c.state = prev
	default:
		c.state = StateError
		c.lastErr = err
	}
	return program, err
}

func (c *Controller) reloadLocked(ctx context.Context, build int) (*livegraph.Program, error) {
	source := c.watcher.Path()
	out := c.workspace.ArtifactPath(build)

	c.state = StateCompiling
	cctx, compileSpan := c.spans.StartPhaseSpan(ctx, "compile")
	compileStart := time.Now()
	output, err := c.builder.Build(cctx, source, out)
	compileDur := time.Since(compileStart)
	c.metrics.RecordCompile(ctx, err == nil, compileDur)
	c.spans.EndSpanWithError(compileSpan, err)
	if err != nil {
		if ctx.Err() != nil {
			// Superseded mid-build; the previous artifact is untouched.
			return c.active, ctx.Err()
		}
		cerr := &CompileError{
			Build:       build,
			Source:      source,
			ExitCode:    exitCode(err),
			Output:      output,
			Diagnostics: ParseDiagnostics(output),
			Err:         err,
		}
		if werr := WriteDiagnostics(c.diagPath, build, source, cerr.Diagnostics); werr != nil && c.logger != nil {
			c.logger.Warn("diagnostics file not written", "error", werr)
		}
		observability.LogCompileError(c.logger, build, cerr)
		c.report("compile", cerr)
		// A broken edit never costs the working artifact.
		return c.active, cerr
	}
	observability.LogCompileComplete(c.logger, build, out, durationMs(compileDur))
	if cerr := ClearDiagnostics(c.diagPath); cerr != nil && c.logger != nil {
		c.logger.Warn("stale diagnostics not cleared", "error", cerr)
	}

	c.state = StateLoading
	_, loadSpan := c.spans.StartPhaseSpan(ctx, "load")

	// Unload before load: every entry point resolved from the old
	// artifact must be invalid before the replacement exists.
	if c.module != nil {
		if c.logger != nil {
			c.logger.Debug("unloading previous artifact", "build", c.active.Build, "path", c.active.Path)
		}
		if uerr := c.module.Unload(); uerr != nil && c.logger != nil {
			c.logger.Warn("unload failed", "error", uerr)
		}
		c.module = nil
		c.active = nil
	}

	mod, err := c.loader.Load(out)
	if err != nil {
		lerr := &LoadError{Path: out, Err: err}
		c.spans.EndSpanWithError(loadSpan, lerr)
		observability.LogLoadError(c.logger, out, lerr)
		c.report("load", lerr)
		return nil, lerr
	}

	setup, setupErr := resolveEntry(mod, c.setupSymbol)
	update, updateErr := resolveEntry(mod, c.updateSymbol)
	if setupErr != nil || updateErr != nil {
		var missing []string
		if setupErr != nil {
			missing = append(missing, c.setupSymbol)
		}
		if updateErr != nil {
			missing = append(missing, c.updateSymbol)
		}
		_ = mod.Unload()
		lerr := &LoadError{Path: out, Missing: missing, Err: ErrEntryPointNotFound}
		c.spans.EndSpanWithError(loadSpan, lerr)
		observability.LogLoadError(c.logger, out, lerr)
		c.report("load", lerr)
		return nil, lerr
	}
	c.spans.EndSpanWithError(loadSpan, nil)

	if perr := c.workspace.Prune(); perr != nil && c.logger != nil {
		c.logger.Warn("artifact pruning incomplete", "error", perr)
	}

	c.module = mod
	c.active = &livegraph.Program{Setup: setup, Update: update, Build: build, Path: out}
	observability.LogArtifactLoaded(c.logger, build, out)
	return c.active, nil
}

// Close unloads the active artifact.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.module == nil {
		return nil
	}
	err := c.module.Unload()
	c.module = nil
	c.active = nil
	c.state = StateIdle
	return err
}

func (c *Controller) report(source string, err error) {
	if c.reporter == nil {
		return
	}
	c.reporter.Publish(livegraph.Report{Source: source, Err: err, Time: time.Now()})
}

// resolveEntry looks up an entry point and checks its signature. Both
// entry points share the signature func(*livegraph.RunContext) error; a
// symbol with any other type counts as not found.
func resolveEntry(mod Module, name string) (func(*livegraph.RunContext) error, error) {
	sym, err := mod.Resolve(name)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(*livegraph.RunContext) error)
	if !ok {
		return nil, fmt.Errorf("symbol %s has type %T, want func(*livegraph.RunContext) error", name, sym)
	}
	return fn, nil
}

// exitCode digs the process exit status out of a build failure, 0 when
// the compiler never ran.
func exitCode(err error) int {
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	return 0
}

func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
