package livegraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// StateMap holds opaque per-operator snapshots keyed by operator name.
// The name is the whole contract: after a reload, a snapshot is restored
// into whichever operator carries the same name in the fresh chain, even
// though it is a brand-new instance from recompiled code.
type StateMap map[string][]byte

// SaveStates captures a snapshot from every Stateful operator, in
// insertion order. Operators that are not Stateful, or whose SaveState
// returns a nil snapshot, are skipped. A SaveState failure skips that
// operator without losing the others; the failures come back joined.
func (c *Chain) SaveStates() (StateMap, error) {
	states := make(StateMap)
	var errs []error
	for _, name := range c.Names() {
		op, ok := c.Get(name)
		if !ok {
			continue
		}
		s, ok := op.(Stateful)
		if !ok {
			continue
		}
		data, err := s.SaveState()
		if err != nil {
			errs = append(errs, &OperatorError{Operator: name, Op: "save", Err: err})
			continue
		}
		if data == nil {
			continue
		}
		states[name] = data
	}
	return states, errors.Join(errs...)
}

// RestoreStates applies snapshots to same-named Stateful operators.
// Snapshots whose name matches nothing in the chain (the operator was
// removed or renamed in the edit) are dropped silently and counted. A
// LoadState failure drops that snapshot without aborting the rest.
func (c *Chain) RestoreStates(states StateMap) (restored, dropped int, err error) {
	var errs []error
	for name, data := range states {
		op, ok := c.Get(name)
		if !ok {
			dropped++
			continue
		}
		s, ok := op.(Stateful)
		if !ok {
			dropped++
			continue
		}
		if loadErr := s.LoadState(data); loadErr != nil {
			dropped++
			errs = append(errs, &OperatorError{Operator: name, Op: "restore", Err: loadErr})
			continue
		}
		restored++
	}
	return restored, dropped, errors.Join(errs...)
}

// PersistStates writes a StateMap to a snapshot store under the given
// session, one envelope per operator. The build number records which
// artifact produced each snapshot.
func PersistStates(store statestore.Store, session string, build int, states StateMap) error {
	var errs []error
	for name, data := range states {
		snap := statestore.New(session, name, build, data)
		payload, err := snap.Marshal()
		if err != nil {
			errs = append(errs, fmt.Errorf("marshaling snapshot for %s: %w", name, err))
			continue
		}
		if err := store.Save(session, name, payload); err != nil {
			errs = append(errs, fmt.Errorf("persisting snapshot for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// LoadPersistedStates reads every snapshot stored for a session back
// into a StateMap. Envelopes that fail to parse are skipped; the
// remaining snapshots still load.
func LoadPersistedStates(store statestore.Store, session string) (StateMap, error) {
	infos, err := store.List(session)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	states := make(StateMap, len(infos))
	var errs []error
	for _, info := range infos {
		payload, err := store.Load(session, info.Operator)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading snapshot for %s: %w", info.Operator, err))
			continue
		}
		snap, err := statestore.Unmarshal(payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing snapshot for %s: %w", info.Operator, err))
			continue
		}
		states[info.Operator] = snap.State
	}
	return states, errors.Join(errs...)
}
