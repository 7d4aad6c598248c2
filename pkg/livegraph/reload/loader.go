package reload

import (
	"fmt"
	"plugin"
	"sync/atomic"
)

// Module is a loaded artifact. Resolve looks up an exported symbol;
// Unload invalidates the handle so no further symbol from the artifact
// can be reached through it.
type Module interface {
	Resolve(name string) (any, error)
	Unload() error
}

// ModuleLoader opens compiled artifacts. The controller swaps loaders
// for tests; production hosts use PluginLoader.
type ModuleLoader interface {
	Load(path string) (Module, error)
}

// PluginLoader loads artifacts with the runtime plugin package.
//
// The Go runtime keeps plugin code mapped for the life of the process
// and caches handles by path. Unload therefore works by invalidation:
// the handle drops its plugin reference so resolved symbols from the
// old artifact are unreachable, and every build gets a unique artifact
// path so a later Load can never receive the cached handle of an
// earlier one.
type PluginLoader struct{}

var _ ModuleLoader = PluginLoader{}

// Load implements ModuleLoader.
func (PluginLoader) Load(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plugin: %w", err)
	}
	m := &pluginModule{path: path}
	m.p.Store(p)
	return m, nil
}

type pluginModule struct {
	path string
	p    atomic.Pointer[plugin.Plugin]
}

func (m *pluginModule) Resolve(name string) (any, error) {
	p := m.p.Load()
	if p == nil {
		return nil, fmt.Errorf("%s: %w", m.path, ErrModuleUnloaded)
	}
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

func (m *pluginModule) Unload() error {
	m.p.Store(nil)
	return nil
}
