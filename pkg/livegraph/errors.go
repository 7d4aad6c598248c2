package livegraph

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Sentinel errors for chain construction and execution.
var (
	// ErrNoProgram indicates an executor was asked to run before a
	// validated execution order was published.
	ErrNoProgram = errors.New("no execution order published")

	// ErrUnknownOperatorType indicates a factory lookup for an
	// unregistered operator type name.
	ErrUnknownOperatorType = errors.New("unknown operator type")

	// ErrNotAudioCapable indicates an Audio-kind operator that does not
	// implement block rendering.
	ErrNotAudioCapable = errors.New("operator does not implement audio rendering")
)

// CycleError indicates the operator graph contains a dependency cycle.
// No execution order is published while a cycle exists; a previously
// published order stays in effect untouched.
type CycleError struct {
	// Nodes is a witness path through the cycle when the detector could
	// reconstruct one (a -> b -> a is reported as ["a", "b", "a"]).
	// It may be empty when the cycle was found by order-length mismatch.
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "Circular dependency detected in operator chain"
}

// Path returns the witness cycle as "a -> b -> a", or "" if unknown.
func (e *CycleError) Path() string {
	if len(e.Nodes) == 0 {
		return ""
	}
	return strings.Join(e.Nodes, " -> ")
}

// ValidationError indicates a designated output operator is missing or has
// the wrong output kind. Chain initialization fails closed on it.
type ValidationError struct {
	// Output is the designated operator name.
	Output string
	// Missing is true when no operator with that name exists.
	Missing bool
	// Got is the operator's actual output kind (when not Missing).
	Got Kind
	// Want is the kind the designation requires (Texture or Audio).
	Want Kind
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Output operator '%s' not found", e.Output)
	}
	return fmt.Sprintf("Output operator '%s' produces %s, not %s", e.Output, e.Got, e.Want)
}

// OperatorError wraps a failure from a single operator call.
// Failures are contained per operator: one failing node never propagates
// a fault into unrelated nodes or the other scheduling domain.
type OperatorError struct {
	// Operator is the name of the operator that failed.
	Operator string
	// Op is the call that failed ("init", "process", "render", "save",
	// "restore").
	Op string
	// Err is the underlying error from the operator.
	Err error
}

// Error implements the error interface.
func (e *OperatorError) Error() string {
	return fmt.Sprintf("operator %s: %s: %v", e.Operator, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperatorError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered panic from an operator or entry-point
// call. Operators arrive through a reloadable artifact, so a panicking
// node must never take the host down.
type PanicError struct {
	// Operator is the operator (or entry point) that panicked.
	Operator string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("operator %s panicked: %v", e.Operator, e.Value)
}

// newPanicError captures the current stack along with the panic value.
func newPanicError(operator string, value any) *PanicError {
	return &PanicError{Operator: operator, Value: value, Stack: string(debug.Stack())}
}
