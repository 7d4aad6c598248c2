// Package observability provides structured logging, metrics, and
// tracing for the livegraph runtime: slog for logs, OpenTelemetry for
// metrics and spans. Everything is opt-in with no-op implementations
// when disabled, and nothing here is ever called from the audio
// callback thread.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger. Returns a new logger
// carrying session_id and build fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "sess-123", 4)
//	enriched.Info("chain ready") // includes session_id, build
func EnrichLogger(logger *slog.Logger, sessionID string, build int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.Int("build", build),
	)
}

// LogChainReady logs a successful chain initialization.
func LogChainReady(logger *slog.Logger, operators, visual, audio int) {
	if logger == nil {
		return
	}
	logger.Info("chain initialized",
		slog.Int("operators", operators),
		slog.Int("visual_order", visual),
		slog.Int("audio_order", audio),
	)
}

// LogChainError logs a failed chain initialization (cycle or
// validation failure).
func LogChainError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("chain initialization failed",
		slog.String("error", err.Error()),
	)
}

// LogFrameComplete logs one finished frame pass.
func LogFrameComplete(logger *slog.Logger, frame uint64, durationMs float64, operatorErrors int) {
	if logger == nil {
		return
	}
	logger.Debug("frame completed",
		slog.Uint64("frame", frame),
		slog.Float64("duration_ms", durationMs),
		slog.Int("operator_errors", operatorErrors),
	)
}

// LogOperatorError logs one failed operator call.
func LogOperatorError(logger *slog.Logger, operator, op string, err error) {
	if logger == nil {
		return
	}
	logger.Error("operator failed",
		slog.String("operator", operator),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// LogReloadTriggered logs a detected source change.
func LogReloadTriggered(logger *slog.Logger, source string, build int) {
	if logger == nil {
		return
	}
	logger.Info("source changed, rebuilding",
		slog.String("source", source),
		slog.Int("build", build),
	)
}

// LogCompileComplete logs a successful external build.
func LogCompileComplete(logger *slog.Logger, build int, artifact string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("compile succeeded",
		slog.Int("build", build),
		slog.String("artifact", artifact),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCompileError logs a failed external build. The diagnostics stay in
// the error; the log line carries only the summary.
func LogCompileError(logger *slog.Logger, build int, err error) {
	if logger == nil {
		return
	}
	logger.Error("compile failed",
		slog.Int("build", build),
		slog.String("error", err.Error()),
	)
}

// LogArtifactLoaded logs a successful module load and entry-point
// resolution.
func LogArtifactLoaded(logger *slog.Logger, build int, path string) {
	if logger == nil {
		return
	}
	logger.Info("artifact loaded",
		slog.Int("build", build),
		slog.String("path", path),
	)
}

// LogLoadError logs a failed module load. After a load failure there is
// no active artifact.
func LogLoadError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Error("artifact load failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogStateSaved logs a pre-reload state snapshot pass.
func LogStateSaved(logger *slog.Logger, snapshots int) {
	if logger == nil {
		return
	}
	logger.Debug("operator states saved",
		slog.Int("snapshots", snapshots),
	)
}

// LogStateRestored logs a post-reload state restore pass. Dropped
// counts snapshots with no matching operator in the new chain.
func LogStateRestored(logger *slog.Logger, restored, dropped int) {
	if logger == nil {
		return
	}
	logger.Debug("operator states restored",
		slog.Int("restored", restored),
		slog.Int("dropped", dropped),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
