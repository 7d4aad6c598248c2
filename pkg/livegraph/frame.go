package livegraph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// FrameContext carries per-frame data into operator Process calls. One
// instance is reused across frames; operators must not retain it.
type FrameContext struct {
	// Frame is the frame counter, starting at 0 for the first pass after
	// a program is published.
	Frame uint64
	// Time is seconds since the executor started.
	Time float64
	// Delta is seconds since the previous frame.
	Delta float64
	// Recorder collects this frame's submissions for the single
	// end-of-pass batch.
	Recorder *CommandRecorder
	// Logger is nil when logging is disabled.
	Logger *slog.Logger
}

// Command is one queued submission recorded by an operator during a
// frame pass. The core batches commands and never interprets Payload.
type Command struct {
	Operator string
	Pass     string
	Payload  any
}

// CommandRecorder accumulates the frame's commands. Everything recorded
// during a pass is flushed in one batched submission at end of pass,
// never one submission per operator.
type CommandRecorder struct {
	cmds []Command
}

// Record appends a command to the current frame's batch.
func (r *CommandRecorder) Record(cmd Command) {
	r.cmds = append(r.cmds, cmd)
}

// Len returns the number of commands recorded so far this frame.
func (r *CommandRecorder) Len() int { return len(r.cmds) }

func (r *CommandRecorder) reset() { r.cmds = r.cmds[:0] }

// Submitter receives the batched frame submission. It is the boundary to
// the GPU-like backend, which is outside the core.
type Submitter interface {
	SubmitBatch(fc *FrameContext, cmds []Command) error
}

// Presenter receives the resolved visual output after each frame pass.
// It is the boundary to the presentation layer, which is outside the
// core.
type Presenter interface {
	Present(fc *FrameContext, tex Texture) error
}

// FrameExecutor walks the Visual order once per frame on the frame
// thread. Operators run strictly in topological order, never
// concurrently: later nodes may read buffers earlier ones just wrote.
//
// FrameExecutor is confined to the frame thread; only SetProgram and
// ClearProgram may be called from elsewhere, and only while the frame
// loop is quiet (the engine swaps programs between frames).
type FrameExecutor struct {
	program []Operator
	output  Operator // designated visual output, nil when unset

	recorder  CommandRecorder
	submitter Submitter
	presenter Presenter

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	reporter *Reporter

	frame   uint64
	started time.Time
	last    time.Time
}

// NewFrameExecutor creates an executor with no program. Nil metrics
// fall back to the no-op recorder; logger and reporter may be nil.
func NewFrameExecutor(submitter Submitter, presenter Presenter, logger *slog.Logger, metrics observability.MetricsRecorder, reporter *Reporter) *FrameExecutor {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &FrameExecutor{
		submitter: submitter,
		presenter: presenter,
		logger:    logger,
		metrics:   metrics,
		reporter:  reporter,
	}
}

// SetProgram publishes a validated Visual order and the designated
// visual output operator. Resets the frame counter: the new program's
// first pass is frame 0.
func (x *FrameExecutor) SetProgram(visual []Operator, output Operator) {
	x.program = visual
	x.output = output
	x.frame = 0
	x.started = time.Time{}
}

// ClearProgram removes the current program. Subsequent RunFrame calls
// return ErrNoProgram until a new program is published.
func (x *FrameExecutor) ClearProgram() {
	x.program = nil
	x.output = nil
}

// HasProgram reports whether a program is published.
func (x *FrameExecutor) HasProgram() bool { return x.program != nil }

// Frame returns the number of completed passes for the current program.
func (x *FrameExecutor) Frame() uint64 { return x.frame }

// RunFrame executes one frame pass: bypassed operators are skipped, the
// rest run in Visual order, the recorded commands go out in one batched
// submission, and the visual output's texture (following bypass
// pass-through) is handed to the presenter.
//
// A failing operator does not stop the pass; its error is reported and
// joined into the returned error so the host can display it. Structural
// problems (no program) are returned alone.
func (x *FrameExecutor) RunFrame(ctx context.Context) error {
	if x.program == nil {
		return ErrNoProgram
	}

	now := time.Now()
	if x.started.IsZero() {
		x.started = now
		x.last = now
	}
	fc := FrameContext{
		Frame:    x.frame,
		Time:     now.Sub(x.started).Seconds(),
		Delta:    now.Sub(x.last).Seconds(),
		Recorder: &x.recorder,
		Logger:   x.logger,
	}
	x.recorder.reset()

	var errs []error
	for _, op := range x.program {
		if op.Bypassed() {
			continue
		}
		opStart := time.Now()
		err := processOperator(op, &fc)
		x.metrics.RecordOperator(ctx, op.Name(), time.Since(opStart), err)
		if err != nil {
			observability.LogOperatorError(x.logger, op.Name(), "process", err)
			if x.reporter != nil {
				x.reporter.Publish(Report{Source: "frame", Operator: op.Name(), Err: err, Time: time.Now()})
			}
			errs = append(errs, err)
		}
	}

	if x.submitter != nil && x.recorder.Len() > 0 {
		if err := x.submitter.SubmitBatch(&fc, x.recorder.cmds); err != nil {
			errs = append(errs, err)
		}
	}

	if x.presenter != nil && x.output != nil {
		if tp, ok := EffectiveOutput(x.output).(TextureProvider); ok {
			if err := x.presenter.Present(&fc, tp.OutputTexture()); err != nil {
				errs = append(errs, err)
			}
		}
	}

	x.frame++
	x.last = now
	duration := time.Since(now)
	x.metrics.RecordFrame(ctx, duration, len(errs))
	observability.LogFrameComplete(x.logger, fc.Frame, float64(duration.Microseconds())/1000.0, len(errs))

	return errors.Join(errs...)
}

// processOperator isolates one Process call, converting a panic into an
// OperatorError so one bad node cannot end the frame loop.
func processOperator(op Operator, fc *FrameContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &OperatorError{Operator: op.Name(), Op: "process", Err: newPanicError(op.Name(), r)}
		}
	}()
	if callErr := op.Process(fc); callErr != nil {
		return &OperatorError{Operator: op.Name(), Op: "process", Err: callErr}
	}
	return nil
}
