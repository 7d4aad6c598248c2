package livegraph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Chain owns all operator instances for one loaded program, keyed by
// stable name, together with the designated visual and audio outputs and
// the cached execution order.
//
// A fresh Chain is populated once per successful graph-construction call
// (once per load and once per successful reload). Mutation invalidates
// the cached order; it is recomputed lazily before the next use and a
// failed recompute leaves the previously published order untouched.
//
// Chain methods are safe for concurrent use from control-side
// goroutines. The audio callback never touches a Chain: it consumes an
// immutable program snapshot published to the AudioGraph.
type Chain struct {
	mu      sync.RWMutex
	ops     map[string]Operator
	names   []string // insertion order; seeds the resolver's ready queue
	pending []pendingWire

	visualOutput string
	audioOutput  string

	order  []Operator // cached full topological order
	visual []Operator
	audio  []Operator
	dirty  bool
	err    error // last resolve/validation failure
}

// pendingWire is a by-name connection deferred until both ends exist.
type pendingWire struct {
	consumer string
	slot     int
	producer string
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{
		ops:   make(map[string]Operator),
		dirty: true,
	}
}

// Add registers an operator under the given name and returns the chain
// for method chaining. If the operator was constructed without a name,
// Add assigns it one.
//
// Panics if:
//   - name is empty or contains whitespace
//   - op is nil
//   - name is already registered
//   - op already carries a different name
func (c *Chain) Add(name string, op Operator) *Chain {
	if name == "" {
		panic("livegraph: operator name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		panic("livegraph: operator name cannot contain whitespace")
	}
	if op == nil {
		panic("livegraph: operator cannot be nil")
	}
	if got := op.Name(); got == "" {
		ns, ok := op.(nameSetter)
		if !ok {
			panic("livegraph: unnamed operator does not support naming")
		}
		ns.setName(name)
	} else if got != name {
		panic(fmt.Sprintf("livegraph: operator already named %q, cannot add as %q", got, name))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ops[name]; exists {
		panic(fmt.Sprintf("livegraph: duplicate operator name: %s", name))
	}

	c.ops[name] = op
	c.names = append(c.names, name)
	c.dirty = true
	return c
}

// Get returns the operator registered under name.
func (c *Chain) Get(name string) (Operator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.ops[name]
	return op, ok
}

// Len returns the number of registered operators.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ops)
}

// Names returns the operator names in insertion order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Wire records a by-name connection from producer into the consumer's
// input slot. Both ends may be added later; resolution happens on the
// next Resolve/Init. A wire whose ends never materialize is skipped with
// a warning rather than failing the chain (a reload may legitimately
// drop one side).
func (c *Chain) Wire(consumer string, slot int, producer string) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, pendingWire{consumer: consumer, slot: slot, producer: producer})
	c.dirty = true
	return c
}

// SetVisualOutput designates the operator whose texture is presented
// after each frame pass. Validated at Resolve/Init: the operator must
// exist and produce Texture.
func (c *Chain) SetVisualOutput(name string) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visualOutput = name
	c.dirty = true
	return c
}

// SetAudioOutput designates the operator whose samples fill the audio
// callback's block. Validated at Resolve/Init: the operator must exist
// and produce Audio.
func (c *Chain) SetAudioOutput(name string) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioOutput = name
	c.dirty = true
	return c
}

// VisualOutput returns the designated visual output name ("" if unset).
func (c *Chain) VisualOutput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visualOutput
}

// AudioOutput returns the designated audio output name ("" if unset).
func (c *Chain) AudioOutput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioOutput
}

// Err returns the most recent resolve or validation failure, or nil.
func (c *Chain) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Resolve recomputes the execution order if the chain changed since the
// last resolve. On failure the previous order (if any) stays published
// and the error is also retained for Err.
func (c *Chain) Resolve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked()
}

func (c *Chain) resolveLocked() error {
	if !c.dirty {
		return c.err
	}

	c.applyPendingLocked()

	order, err := computeOrder(c.names, c.ops)
	if err != nil {
		c.err = err
		c.dirty = false
		return err
	}
	if err := c.validateOutputsLocked(); err != nil {
		c.err = err
		c.dirty = false
		return err
	}

	c.order = order
	c.visual, c.audio = partitionOrder(order)
	c.err = nil
	c.dirty = false
	return nil
}

// applyPendingLocked resolves deferred by-name wires whose ends both
// exist. Wires with a missing end are kept pending in case a later
// mutation supplies it.
func (c *Chain) applyPendingLocked() {
	remaining := c.pending[:0]
	for _, w := range c.pending {
		consumer, okC := c.ops[w.consumer]
		producer, okP := c.ops[w.producer]
		if !okC || !okP {
			slog.Warn("deferred wire references unknown operator",
				"consumer", w.consumer, "producer", w.producer)
			remaining = append(remaining, w)
			continue
		}
		setter, ok := consumer.(interface{ SetInput(int, Operator) })
		if !ok {
			slog.Warn("wire target does not accept inputs", "consumer", w.consumer)
			continue
		}
		setter.SetInput(w.slot, producer)
	}
	c.pending = remaining
}

func (c *Chain) validateOutputsLocked() error {
	if c.visualOutput != "" {
		op, ok := c.ops[c.visualOutput]
		if !ok {
			return &ValidationError{Output: c.visualOutput, Missing: true}
		}
		if op.Kind() != KindTexture {
			return &ValidationError{Output: c.visualOutput, Got: op.Kind(), Want: KindTexture}
		}
	}
	if c.audioOutput != "" {
		op, ok := c.ops[c.audioOutput]
		if !ok {
			return &ValidationError{Output: c.audioOutput, Missing: true}
		}
		if op.Kind() != KindAudio {
			return &ValidationError{Output: c.audioOutput, Got: op.Kind(), Want: KindAudio}
		}
	}
	return nil
}

// Order returns the cached full topological order, resolving first if
// the chain changed. The returned slice is shared; callers must not
// mutate it.
func (c *Chain) Order() ([]Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resolveLocked(); err != nil {
		return nil, err
	}
	return c.order, nil
}

// VisualOrder returns the Visual-domain sub-order (kinds other than
// Audio), resolving first if needed.
func (c *Chain) VisualOrder() ([]Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resolveLocked(); err != nil {
		return nil, err
	}
	return c.visual, nil
}

// AudioOrder returns the Audio-domain sub-order, resolving first if
// needed.
func (c *Chain) AudioOrder() ([]Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.resolveLocked(); err != nil {
		return nil, err
	}
	return c.audio, nil
}

// Init resolves the chain, fails closed on cycle or validation errors,
// then calls Init on every operator in execution order. An operator
// init failure is returned as an OperatorError and aborts
// initialization; already-initialized operators are cleaned up in
// reverse order.
func (c *Chain) Init(rc *RunContext) error {
	c.mu.Lock()
	if err := c.resolveLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	order := c.order
	c.mu.Unlock()

	for i, op := range order {
		if err := initOperator(op, rc); err != nil {
			for j := i - 1; j >= 0; j-- {
				order[j].Cleanup()
			}
			return err
		}
	}
	return nil
}

// initOperator isolates one Init call, converting a panic into a
// PanicError so a bad node cannot take the host down.
func initOperator(op Operator, rc *RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &OperatorError{Operator: op.Name(), Op: "init", Err: newPanicError(op.Name(), r)}
		}
	}()
	if callErr := op.Init(rc); callErr != nil {
		return &OperatorError{Operator: op.Name(), Op: "init", Err: callErr}
	}
	return nil
}

// Cleanup tears down all operators in reverse execution order. Operators
// never ordered (resolve failed) are cleaned up in reverse insertion
// order instead.
func (c *Chain) Cleanup() {
	c.mu.Lock()
	order := c.order
	if order == nil {
		order = make([]Operator, 0, len(c.names))
		for _, name := range c.names {
			order = append(order, c.ops[name])
		}
	}
	c.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		order[i].Cleanup()
	}
}
