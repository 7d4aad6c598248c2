package livegraph

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// AudioContext carries the per-block rendering parameters handed to
// every AudioRenderer. One instance is reused across blocks and updated
// in place on the callback thread; renderers must not retain it.
type AudioContext struct {
	// SampleRate in frames per second.
	SampleRate int

	// Channels per frame. Samples are interleaved.
	Channels int

	// Frames in this block.
	Frames int

	// Block is the running block counter since the graph was created.
	Block uint64

	// Time is the seconds of audio rendered before this block.
	Time float64
}

// audioProgram is the immutable snapshot the callback renders from. A
// new value is built on the control side at publish time so the
// callback itself never allocates: renderers and event handlers are
// resolved here, not per block.
type audioProgram struct {
	order     []Operator
	renderers []AudioRenderer // parallel to order
	handlers  map[string]EventHandler
	broadcast []EventHandler // all handlers, for untargeted events
	output    AudioRenderer
}

// AudioStats is a point-in-time view of callback health, readable from
// any thread.
type AudioStats struct {
	// Load is the smoothed fraction of the block time budget spent
	// rendering (1.0 means the callback used its entire budget).
	Load float64

	// Peak is the worst single-block load observed since the last reset.
	Peak float64

	// Blocks rendered since the graph was created.
	Blocks uint64

	// Failures counts blocks cut short by a render error; the remainder
	// of each such block was filled with silence.
	Failures uint64

	// DroppedEvents counts control events discarded because the ring was
	// full.
	DroppedEvents uint64
}

// dspLoadDecay is the smoothing factor for the running DSP load: each
// block contributes one minus this fraction.
const dspLoadDecay = 0.9

// AudioGraph runs the pull domain: the real-time callback drains
// pending control events, renders the audio sub-order, and copies the
// designated output's samples into the host buffer. With no program
// published, or after any render failure, the buffer is filled with
// silence instead.
//
// The active program is swapped atomically. RenderBlock never takes a
// lock and never allocates on its happy path; everything it needs is
// resolved when the program is published. Exactly one thread may call
// RenderBlock.
type AudioGraph struct {
	program atomic.Pointer[audioProgram]

	format   AudioFormat
	events   *EventRing
	reporter *Reporter

	rendering atomic.Int32 // 1 while a block is in flight
	blocks    atomic.Uint64
	frames    atomic.Uint64
	failures  atomic.Uint64
	loadBits  atomic.Uint64 // math.Float64bits of the smoothed load
	peakBits  atomic.Uint64

	ac AudioContext // reused per block, callback-owned
}

// NewAudioGraph creates an audio graph for the given stream format.
// Zero format fields fall back to 48 kHz stereo with 512-frame blocks.
// events may be nil when the program pushes no control events; reporter
// may be nil to discard failure reports.
func NewAudioGraph(format AudioFormat, events *EventRing, reporter *Reporter) *AudioGraph {
	if format.SampleRate <= 0 {
		format.SampleRate = 48000
	}
	if format.Channels <= 0 {
		format.Channels = 2
	}
	if format.BlockFrames <= 0 {
		format.BlockFrames = 512
	}
	return &AudioGraph{format: format, events: events, reporter: reporter}
}

// Format returns the stream format the graph renders.
func (g *AudioGraph) Format() AudioFormat { return g.format }

// SetProgram publishes the audio sub-order as the active program. Every
// operator in the order must implement AudioRenderer; the first that
// does not fails the publish with ErrNotAudioCapable and leaves the
// previous program active. output designates the operator whose samples
// fill the host buffer and may be nil (the callback then renders the
// order for its side effects and outputs silence).
func (g *AudioGraph) SetProgram(order []Operator, output Operator) error {
	p := &audioProgram{
		order:     order,
		renderers: make([]AudioRenderer, len(order)),
		handlers:  make(map[string]EventHandler),
	}
	for i, op := range order {
		r, ok := op.(AudioRenderer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotAudioCapable, op.Name())
		}
		p.renderers[i] = r
		if h, ok := op.(EventHandler); ok {
			p.handlers[op.Name()] = h
			p.broadcast = append(p.broadcast, h)
		}
	}
	if output != nil {
		r, ok := output.(AudioRenderer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotAudioCapable, output.Name())
		}
		p.output = r
	}
	g.program.Store(p)
	return nil
}

// ClearProgram atomically removes the active program. Subsequent blocks
// render silence.
func (g *AudioGraph) ClearProgram() {
	g.program.Store(nil)
}

// HasProgram reports whether a program is published.
func (g *AudioGraph) HasProgram() bool {
	return g.program.Load() != nil
}

// Quiesce clears the program and waits for any in-flight block to
// finish, so the caller may safely tear down the operators the callback
// was rendering. Returns the context error if the wait is cut short.
func (g *AudioGraph) Quiesce(ctx context.Context) error {
	g.ClearProgram()
	for g.rendering.Load() != 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(50 * time.Microsecond)
	}
	return nil
}

// RenderBlock renders one block into out (interleaved samples). It is
// the real-time entry point: called by the platform audio callback with
// a hard deadline, so the happy path takes no locks and performs no
// allocation. Failure handling may allocate; it runs at most once per
// block and ends with silence.
func (g *AudioGraph) RenderBlock(out []float32) {
	g.rendering.Store(1)
	defer g.rendering.Store(0)

	p := g.program.Load()
	if p == nil {
		fillSilence(out)
		return
	}

	start := time.Now()
	frames := len(out) / g.format.Channels

	g.drainEvents(p)

	ac := &g.ac
	ac.SampleRate = g.format.SampleRate
	ac.Channels = g.format.Channels
	ac.Frames = frames
	ac.Block = g.blocks.Load()
	ac.Time = float64(g.frames.Load()) / float64(g.format.SampleRate)

	for i, r := range p.renderers {
		if err := renderOperator(p.order[i], r, ac); err != nil {
			g.failures.Add(1)
			if g.reporter != nil {
				g.reporter.Publish(Report{Source: "audio", Operator: p.order[i].Name(), Err: err})
			}
			fillSilence(out)
			g.finishBlock(start, frames)
			return
		}
	}

	if p.output != nil {
		n := copy(out, p.output.OutputSamples())
		fillSilence(out[n:])
	} else {
		fillSilence(out)
	}
	g.finishBlock(start, frames)
}

// drainEvents dispatches every queued control event before rendering.
// Targeted events go to the named operator's handler; events with an
// empty Target go to every handler. Events for operators that no longer
// exist are discarded.
func (g *AudioGraph) drainEvents(p *audioProgram) {
	if g.events == nil {
		return
	}
	for {
		ev, ok := g.events.Pop()
		if !ok {
			return
		}
		if ev.Target == "" {
			for _, h := range p.broadcast {
				h.HandleEvent(ev)
			}
			continue
		}
		if h, ok := p.handlers[ev.Target]; ok {
			h.HandleEvent(ev)
		}
	}
}

// renderOperator isolates one RenderBlock call, converting a panic into
// a PanicError so a bad node produces silence instead of taking the
// audio thread down.
func renderOperator(op Operator, r AudioRenderer, ac *AudioContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &OperatorError{Operator: op.Name(), Op: "render", Err: newPanicError(op.Name(), rec)}
		}
	}()
	if callErr := r.RenderBlock(ac); callErr != nil {
		return &OperatorError{Operator: op.Name(), Op: "render", Err: callErr}
	}
	return nil
}

// finishBlock updates the block counters and the DSP load figures. Load
// is the fraction of the block's wall-clock budget spent rendering,
// smoothed across blocks; the peak keeps the worst single block.
func (g *AudioGraph) finishBlock(start time.Time, frames int) {
	g.blocks.Add(1)
	g.frames.Add(uint64(frames))
	if frames <= 0 {
		return
	}
	budget := float64(frames) / float64(g.format.SampleRate)
	load := time.Since(start).Seconds() / budget

	prev := math.Float64frombits(g.loadBits.Load())
	g.loadBits.Store(math.Float64bits(prev*dspLoadDecay + load*(1-dspLoadDecay)))

	for {
		peak := g.peakBits.Load()
		if load <= math.Float64frombits(peak) {
			return
		}
		if g.peakBits.CompareAndSwap(peak, math.Float64bits(load)) {
			return
		}
	}
}

// Stats returns a snapshot of callback health.
func (g *AudioGraph) Stats() AudioStats {
	s := AudioStats{
		Load:     math.Float64frombits(g.loadBits.Load()),
		Peak:     math.Float64frombits(g.peakBits.Load()),
		Blocks:   g.blocks.Load(),
		Failures: g.failures.Load(),
	}
	if g.events != nil {
		s.DroppedEvents = g.events.Dropped()
	}
	return s
}

// ResetPeak clears the peak load figure. Hosts typically reset it when
// they display it.
func (g *AudioGraph) ResetPeak() {
	g.peakBits.Store(0)
}

func fillSilence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
