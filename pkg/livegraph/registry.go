package livegraph

import (
	"fmt"
	"sort"
	"sync"
)

// OperatorFactory constructs a new operator instance under the given
// name. Factories must return a ready-to-Init operator; any expensive
// setup belongs in the operator's Init.
type OperatorFactory func(name string) Operator

// OperatorRegistry maps operator type names to factories so chains can
// be built data-driven (from a manifest, an editor, or a loaded
// program). The host clears it before every reload: a fresh artifact
// re-registers its types during setup, and factories from an unloaded
// artifact must never outlive it.
//
// Safe for concurrent use.
type OperatorRegistry struct {
	mu        sync.RWMutex
	factories map[string]OperatorFactory
}

// NewOperatorRegistry creates an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{factories: make(map[string]OperatorFactory)}
}

// Register binds a factory to a type name, replacing any previous
// binding. Panics if typeName is empty or factory is nil; both indicate
// programmer error at registration time.
func (r *OperatorRegistry) Register(typeName string, factory OperatorFactory) {
	if typeName == "" {
		panic("livegraph: operator type name cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("livegraph: nil factory for operator type %q", typeName))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// New constructs an operator of the given type. Returns
// ErrUnknownOperatorType (wrapped with the type name) when no factory is
// registered.
func (r *OperatorRegistry) New(typeName, instanceName string) (Operator, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperatorType, typeName)
	}
	return factory(instanceName), nil
}

// Has reports whether a factory is registered for typeName.
func (r *OperatorRegistry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeName]
	return ok
}

// Types returns the registered type names, sorted.
func (r *OperatorRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of registered factories.
func (r *OperatorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Clear drops every registration. Called by the host before a reload.
func (r *OperatorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]OperatorFactory)
}
