package reload

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for reload operations.
var (
	// ErrEntryPointNotFound indicates a loaded artifact is missing one of
	// the required entry points, or exports it with the wrong signature.
	ErrEntryPointNotFound = errors.New("entry points not found")

	// ErrModuleUnloaded indicates a resolve against an already-unloaded
	// module handle.
	ErrModuleUnloaded = errors.New("module already unloaded")
)

// CompileError reports a failed build. The previously loaded artifact
// stays active; the host shows the diagnostics and keeps running.
type CompileError struct {
	// Build is the monotonic build number of the failed attempt.
	Build int

	// Source is the chain source that failed to compile.
	Source string

	// ExitCode is the compiler's exit status (0 when it never ran).
	ExitCode int

	// Output is the compiler's combined stdout/stderr, verbatim.
	Output string

	// Diagnostics are the file:line:column messages parsed from Output.
	// Output stays authoritative; parsing is for editor integration.
	Diagnostics []Diagnostic

	// Err is the underlying exec failure.
	Err error
}

// Error includes the verbatim compiler output: the author fixes their
// code from the real message, not a summary of it.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile failed for %s (build %d, exit %d)", e.Source, e.Build, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + out
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// LoadError reports a failed artifact load or entry-point resolution.
// Unlike a compile failure, the previous artifact was already unloaded
// when loading begins, so the controller ends with no active artifact.
type LoadError struct {
	// Path is the artifact that failed to load.
	Path string

	// Missing lists entry points absent or mistyped, when that is the
	// failure.
	Missing []string

	// Err is the underlying failure (ErrEntryPointNotFound when Missing
	// is set).
	Err error
}

func (e *LoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("entry points not found in %s: %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
