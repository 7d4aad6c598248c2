package livegraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParamSpec describes one tweakable parameter: its name, range, and the
// value a fresh instance starts from.
type ParamSpec struct {
	Name    string  `yaml:"name"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Parametric is implemented by operators that expose tweakable
// parameters. Parameter edits arrive on the control side; operators that
// also render audio must hand values across with an Event or an atomic,
// never a lock.
type Parametric interface {
	// Params returns the parameter specs in a stable order.
	Params() []ParamSpec

	// Param returns the current value of the named parameter.
	Param(name string) (float64, bool)

	// SetParam sets the named parameter, clamped to its spec range.
	// Returns false when the name is unknown.
	SetParam(name string, value float64) bool
}

// ParamSet is an embeddable value store implementing Parametric.
// Concrete nodes declare their specs once and read values during
// processing:
//
//	type Gain struct {
//	    livegraph.Base
//	    livegraph.ParamSet
//	}
//
//	func NewGain(name string) *Gain {
//	    return &Gain{
//	        Base:     livegraph.NewBase(name, livegraph.KindAudio),
//	        ParamSet: livegraph.NewParamSet(livegraph.ParamSpec{Name: "level", Min: 0, Max: 2, Default: 1}),
//	    }
//	}
type ParamSet struct {
	specs  []ParamSpec
	values map[string]float64
}

// NewParamSet creates a parameter set seeded with each spec's default.
func NewParamSet(specs ...ParamSpec) ParamSet {
	values := make(map[string]float64, len(specs))
	for _, s := range specs {
		values[s.Name] = s.Default
	}
	return ParamSet{specs: specs, values: values}
}

// Params returns the specs in declaration order.
func (p *ParamSet) Params() []ParamSpec {
	out := make([]ParamSpec, len(p.specs))
	copy(out, p.specs)
	return out
}

// Param returns the current value of the named parameter.
func (p *ParamSet) Param(name string) (float64, bool) {
	v, ok := p.values[name]
	return v, ok
}

// SetParam sets the named parameter, clamped to [Min, Max]. Returns
// false for unknown names.
func (p *ParamSet) SetParam(name string, value float64) bool {
	for _, s := range p.specs {
		if s.Name != name {
			continue
		}
		if s.Min < s.Max {
			if value < s.Min {
				value = s.Min
			}
			if value > s.Max {
				value = s.Max
			}
		}
		p.values[name] = value
		return true
	}
	return false
}

// SidecarPath returns the parameter sidecar path for a watched source:
// the source path with its extension replaced by ".params.yaml".
func SidecarPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + ".params.yaml"
}

// SaveParams writes the current parameter values of every Parametric
// operator in the chain to a YAML sidecar, keyed operator name then
// parameter name. The sidecar survives reloads independently of state
// snapshots, so tweaked values persist even across host restarts.
func SaveParams(c *Chain, path string) error {
	values := make(map[string]map[string]float64)
	for _, name := range c.Names() {
		op, _ := c.Get(name)
		p, ok := op.(Parametric)
		if !ok {
			continue
		}
		m := make(map[string]float64)
		for _, spec := range p.Params() {
			if v, ok := p.Param(spec.Name); ok {
				m[spec.Name] = v
			}
		}
		if len(m) > 0 {
			values[name] = m
		}
	}
	if len(values) == 0 {
		return nil
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing param sidecar: %w", err)
	}
	return nil
}

// LoadParams applies a parameter sidecar to the chain. Operators or
// parameters named in the sidecar but absent from the chain are skipped;
// a missing sidecar file is not an error. Returns the number of values
// applied.
func LoadParams(c *Chain, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading param sidecar: %w", err)
	}

	var values map[string]map[string]float64
	if err := yaml.Unmarshal(data, &values); err != nil {
		return 0, fmt.Errorf("parsing param sidecar %s: %w", path, err)
	}

	applied := 0
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op, ok := c.Get(name)
		if !ok {
			continue
		}
		p, ok := op.(Parametric)
		if !ok {
			continue
		}
		for param, v := range values[name] {
			if p.SetParam(param, v) {
				applied++
			}
		}
	}
	return applied, nil
}
