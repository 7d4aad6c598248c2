package livegraph

import (
	"context"
	"encoding/json"
	"fmt"
)

// Test operators and backend fakes used across tests.

// testOp is a minimal operator that records its lifecycle calls.
type testOp struct {
	Base

	initErr    error
	processErr error
	panicValue any

	initCalls int
	procCalls int

	// procLog records Process order across a set of operators sharing it.
	procLog *[]string
	// cleanupLog records Cleanup order.
	cleanupLog *[]string
}

// newTestOp creates a test operator wired to the given producers.
func newTestOp(name string, kind Kind, inputs ...Operator) *testOp {
	op := &testOp{Base: NewBase(name, kind)}
	for _, in := range inputs {
		op.AddInput(in)
	}
	return op
}

func (o *testOp) Init(rc *RunContext) error {
	o.initCalls++
	return o.initErr
}

func (o *testOp) Process(fc *FrameContext) error {
	o.procCalls++
	if o.procLog != nil {
		*o.procLog = append(*o.procLog, o.Name())
	}
	if o.panicValue != nil {
		panic(o.panicValue)
	}
	return o.processErr
}

func (o *testOp) Cleanup() {
	if o.cleanupLog != nil {
		*o.cleanupLog = append(*o.cleanupLog, o.Name())
	}
}

// textureOp is a visual operator exposing a fixed texture.
type textureOp struct {
	testOp
	tex Texture
}

func newTextureOp(name string, tex Texture, inputs ...Operator) *textureOp {
	op := &textureOp{tex: tex}
	op.Base = NewBase(name, KindTexture)
	for _, in := range inputs {
		op.AddInput(in)
	}
	return op
}

func (o *textureOp) OutputTexture() Texture { return o.tex }

// audioOp is an Audio-kind operator that fills its block with a constant
// and records the events it receives.
type audioOp struct {
	Base

	fill      float32
	out       []float32
	renderErr error
	panicOn   uint64 // panic when rendering this block number (0 = never)

	renders uint64
	events  []Event

	renderLog *[]string
}

func newAudioOp(name string, fill float32, inputs ...Operator) *audioOp {
	op := &audioOp{Base: NewBase(name, KindAudio), fill: fill}
	for _, in := range inputs {
		op.AddInput(in)
	}
	return op
}

func (o *audioOp) Init(rc *RunContext) error {
	o.out = make([]float32, rc.Audio().BlockSamples())
	return nil
}

func (o *audioOp) RenderBlock(ac *AudioContext) error {
	o.renders++
	if o.renderLog != nil {
		*o.renderLog = append(*o.renderLog, o.Name())
	}
	if o.panicOn != 0 && o.renders == o.panicOn {
		panic(fmt.Sprintf("%s: rigged panic", o.Name()))
	}
	if o.renderErr != nil {
		return o.renderErr
	}
	if len(o.out) == 0 {
		o.out = make([]float32, ac.Frames*ac.Channels)
	}
	for i := range o.out {
		o.out[i] = o.fill
	}
	return nil
}

func (o *audioOp) OutputSamples() []float32 { return o.out }

func (o *audioOp) HandleEvent(ev Event) { o.events = append(o.events, ev) }

// statefulOp carries a counter that round-trips through Save/LoadState.
type statefulOp struct {
	testOp

	counter    int
	saveErr    error
	restoreErr error
}

func newStatefulOp(name string, kind Kind) *statefulOp {
	op := &statefulOp{}
	op.Base = NewBase(name, kind)
	return op
}

func (o *statefulOp) SaveState() ([]byte, error) {
	if o.saveErr != nil {
		return nil, o.saveErr
	}
	return json.Marshal(o.counter)
}

func (o *statefulOp) LoadState(data []byte) error {
	if o.restoreErr != nil {
		return o.restoreErr
	}
	return json.Unmarshal(data, &o.counter)
}

// fakeSubmitter records every batched submission.
type fakeSubmitter struct {
	batches [][]Command
	err     error
}

func (s *fakeSubmitter) SubmitBatch(fc *FrameContext, cmds []Command) error {
	batch := make([]Command, len(cmds))
	copy(batch, cmds)
	s.batches = append(s.batches, batch)
	return s.err
}

// fakePresenter records every presented texture.
type fakePresenter struct {
	textures []Texture
	err      error
}

func (p *fakePresenter) Present(fc *FrameContext, tex Texture) error {
	p.textures = append(p.textures, tex)
	return p.err
}

// orderNames flattens an execution order to operator names.
func orderNames(ops []Operator) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name()
	}
	return names
}

// testRunContext builds a RunContext with a chain and a small audio
// format, enough for operator Init.
func testRunContext(chain *Chain) *RunContext {
	return newRunContext(runContextConfig{
		ctx:   context.Background(),
		chain: chain,
		audio: AudioFormat{SampleRate: 48000, Channels: 2, BlockFrames: 16},
	})
}

// drainReporter empties a reporter into a slice.
func drainReporter(r *Reporter) []Report {
	var out []Report
	for {
		rep, ok := r.TryNext()
		if !ok {
			return out
		}
		out = append(out, rep)
	}
}
