package livegraph

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Report carries one validation, compile, load, or runtime failure to
// the host. Reports are display material, not a machine interface: the
// host shows Message and keeps running.
type Report struct {
	// Source identifies the failing stage: "graph", "compile", "load",
	// "setup", "frame", or "audio".
	Source string
	// Operator names the failing node when the failure is per-operator.
	Operator string
	// Err is the underlying failure.
	Err error
	// Time is when the failure was observed. The audio thread leaves it
	// zero; the drain side stamps it.
	Time time.Time
}

// Message returns the human-readable display string.
func (r Report) Message() string {
	if r.Operator != "" {
		return fmt.Sprintf("[%s] %s: %v", r.Source, r.Operator, r.Err)
	}
	return fmt.Sprintf("[%s] %v", r.Source, r.Err)
}

// Reporter is the non-blocking error channel between the executing
// domains and the host. Publish never blocks: when the buffer is full
// the report is dropped and counted, which keeps the audio callback
// inside its time budget no matter how slowly the host drains.
type Reporter struct {
	ch      chan Report
	dropped atomic.Uint64
}

// defaultReportBuffer is the Reporter buffer size when none is given.
const defaultReportBuffer = 64

// NewReporter creates a reporter with the given buffer capacity.
// Capacities below 1 fall back to the default.
func NewReporter(capacity int) *Reporter {
	if capacity < 1 {
		capacity = defaultReportBuffer
	}
	return &Reporter{ch: make(chan Report, capacity)}
}

// Publish delivers a report without blocking. Returns false when the
// buffer was full and the report was dropped.
//
// Safe to call from the real-time audio thread: no locks, no
// allocation beyond what the caller already holds.
func (r *Reporter) Publish(rep Report) bool {
	select {
	case r.ch <- rep:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// C returns the drain channel. The host consumes it on its own thread.
func (r *Reporter) C() <-chan Report {
	return r.ch
}

// TryNext drains one report without blocking.
func (r *Reporter) TryNext() (Report, bool) {
	select {
	case rep := <-r.ch:
		if rep.Time.IsZero() {
			rep.Time = time.Now()
		}
		return rep, true
	default:
		return Report{}, false
	}
}

// Dropped returns how many reports were discarded because the buffer
// was full.
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}
