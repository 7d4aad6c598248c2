package livegraph

// Kind classifies an operator's output. The scheduler only distinguishes
// Audio from everything else when partitioning execution domains; the
// remaining kinds exist for output designation checks and display.
type Kind uint8

// Output kinds.
const (
	KindNone Kind = iota
	KindValue
	KindTexture
	KindAudio
)

// String returns the display name used in validation messages.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "Value"
	case KindTexture:
		return "Texture"
	case KindAudio:
		return "Audio"
	default:
		return "None"
	}
}

// Texture is an opaque handle to a render target produced by an operator.
// The core never interprets it; it is resolved from the designated visual
// output after each frame pass and handed to the presentation layer.
type Texture uint64

// Operator is the capability contract every graph node satisfies.
//
// The core only ever calls through this interface (plus the optional
// capability interfaces below) and never downcasts to a concrete node
// type. Input references are used solely for graph-edge discovery;
// reading input data is the node's own business.
//
// Operators are owned exclusively by a Chain for their lifetime.
type Operator interface {
	// Name returns the operator's stable name, unique within its Chain.
	Name() string

	// Kind returns the operator's output kind.
	Kind() Kind

	// InputCount returns the number of input slots.
	InputCount() int

	// Input returns the i-th input reference, which may be nil for an
	// unconnected slot.
	Input(i int) Operator

	// Init is called once, in execution order, when the owning chain
	// initializes. An error fails chain initialization.
	Init(rc *RunContext) error

	// Process is called once per frame, in Visual order, on the frame
	// thread. Audio-kind operators are never scheduled here.
	Process(fc *FrameContext) error

	// Cleanup releases node resources. Called before the owning chain is
	// torn down, in reverse execution order.
	Cleanup()

	// Bypassed reports whether the frame pass should skip this operator.
	Bypassed() bool
}

// Stateful is implemented by operators whose runtime state should survive
// a live reload. Snapshots are opaque to the core: each node type owns
// its own serialization.
type Stateful interface {
	// SaveState captures the operator's state as an opaque snapshot.
	SaveState() ([]byte, error)

	// LoadState applies a snapshot previously produced by SaveState on an
	// operator with the same name (possibly a different instance).
	LoadState(data []byte) error
}

// TextureProvider is implemented by operators that expose a texture
// output. The frame executor resolves the designated visual output
// through it after each pass.
type TextureProvider interface {
	OutputTexture() Texture
}

// AudioRenderer is implemented by Audio-kind operators. RenderBlock runs
// on the real-time callback thread and must not allocate or block.
type AudioRenderer interface {
	// RenderBlock fills the operator's internal output buffer for one
	// block. Buffers are sized during chain initialization, never here.
	RenderBlock(ac *AudioContext) error

	// OutputSamples returns the interleaved samples produced by the last
	// RenderBlock call.
	OutputSamples() []float32
}

// EventHandler is implemented by operators that consume control events
// (notes, triggers, parameter changes) on the audio thread. Handlers run
// at block start, before rendering, and must not allocate or block.
type EventHandler interface {
	HandleEvent(ev Event)
}

// nameSetter lets Chain.Add assign a name to an operator constructed
// without one. Base implements it; the method stays unexported so only
// the chain can rename a node.
type nameSetter interface {
	setName(name string)
}

// Base provides the bookkeeping half of the Operator contract: name,
// kind, input slots, bypass flag, and a dirty generation for cook
// caching. Concrete nodes embed it and override the lifecycle calls they
// need.
//
//	type Blur struct {
//	    livegraph.Base
//	    radius float64
//	}
//
//	func NewBlur(name string) *Blur {
//	    return &Blur{Base: livegraph.NewBase(name, livegraph.KindTexture)}
//	}
type Base struct {
	name     string
	kind     Kind
	inputs   []Operator
	bypassed bool

	// Dirty generation. Nodes that cache expensive work compare
	// generation against cooked and skip recomputation when equal.
	generation uint64
	cooked     uint64
}

// NewBase creates an operator base with the given name and output kind.
func NewBase(name string, kind Kind) Base {
	return Base{name: name, kind: kind}
}

// Name returns the operator name.
func (b *Base) Name() string { return b.name }

func (b *Base) setName(name string) { b.name = name }

// Kind returns the output kind.
func (b *Base) Kind() Kind { return b.kind }

// InputCount returns the number of input slots.
func (b *Base) InputCount() int { return len(b.inputs) }

// Input returns the i-th input reference, or nil when out of range.
func (b *Base) Input(i int) Operator {
	if i < 0 || i >= len(b.inputs) {
		return nil
	}
	return b.inputs[i]
}

// SetInput connects slot i to src, growing the slot list as needed.
func (b *Base) SetInput(i int, src Operator) {
	if i < 0 {
		return
	}
	for len(b.inputs) <= i {
		b.inputs = append(b.inputs, nil)
	}
	b.inputs[i] = src
}

// AddInput appends src as a new input slot.
func (b *Base) AddInput(src Operator) {
	b.inputs = append(b.inputs, src)
}

// ClearInputs disconnects all input slots.
func (b *Base) ClearInputs() {
	b.inputs = b.inputs[:0]
}

// Bypassed reports whether the frame pass skips this operator.
func (b *Base) Bypassed() bool { return b.bypassed }

// SetBypassed toggles the bypass flag.
func (b *Base) SetBypassed(v bool) { b.bypassed = v }

// MarkDirty advances the dirty generation, invalidating any cached cook.
func (b *Base) MarkDirty() { b.generation++ }

// NeedsCook reports whether the node's cached work is stale.
func (b *Base) NeedsCook() bool { return b.cooked != b.generation }

// DidCook records that cached work is current for this generation.
func (b *Base) DidCook() { b.cooked = b.generation }

// Generation returns the current dirty generation.
func (b *Base) Generation() uint64 { return b.generation }

// Init is a no-op by default.
func (b *Base) Init(rc *RunContext) error { return nil }

// Process is a no-op by default.
func (b *Base) Process(fc *FrameContext) error { return nil }

// Cleanup is a no-op by default.
func (b *Base) Cleanup() {}

// EffectiveOutput follows bypass pass-through: a bypassed operator's
// effective output is its first input's effective output. The walk is
// bounded so a mis-wired chain cannot loop forever.
func EffectiveOutput(op Operator) Operator {
	for hops := 0; op != nil && op.Bypassed() && hops < maxBypassHops; hops++ {
		if op.InputCount() == 0 {
			return op
		}
		next := op.Input(0)
		if next == nil {
			return op
		}
		op = next
	}
	return op
}

// maxBypassHops bounds EffectiveOutput's pass-through walk.
const maxBypassHops = 256
