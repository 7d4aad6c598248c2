package livegraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// TestChain_SaveStates verifies only Stateful operators with data are
// captured.
func TestChain_SaveStates(t *testing.T) {
	plain := newTestOp("plain", KindValue)
	counter := newStatefulOp("counter", KindValue)
	counter.counter = 42

	chain := NewChain().Add("plain", plain).Add("counter", counter)

	states, err := chain.SaveStates()
	require.NoError(t, err)

	require.Len(t, states, 1)
	assert.Contains(t, states, "counter")
	assert.NotContains(t, states, "plain")
}

// TestChain_SaveStates_FailureSkipsOperator verifies one failing save
// does not lose the other snapshots.
func TestChain_SaveStates_FailureSkipsOperator(t *testing.T) {
	good := newStatefulOp("good", KindValue)
	good.counter = 7
	bad := newStatefulOp("bad", KindValue)
	bad.saveErr = errors.New("serialization broke")

	chain := NewChain().Add("good", good).Add("bad", bad)

	states, err := chain.SaveStates()
	require.Error(t, err)

	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "bad", opErr.Operator)
	assert.Equal(t, "save", opErr.Op)

	require.Len(t, states, 1)
	assert.Contains(t, states, "good")
}

// TestChain_RestoreStates_RoundTrip verifies state survives into a
// fresh chain with same-named operators.
func TestChain_RestoreStates_RoundTrip(t *testing.T) {
	before := newStatefulOp("counter", KindValue)
	before.counter = 1234
	old := NewChain().Add("counter", before)

	states, err := old.SaveStates()
	require.NoError(t, err)

	// A reload builds a brand-new instance under the same name.
	after := newStatefulOp("counter", KindValue)
	fresh := NewChain().Add("counter", after)

	restored, dropped, err := fresh.RestoreStates(states)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Zero(t, dropped)
	assert.Equal(t, 1234, after.counter)
}

// TestChain_RestoreStates_DropsUnmatched verifies snapshots for removed
// or renamed operators are dropped silently with a count.
func TestChain_RestoreStates_DropsUnmatched(t *testing.T) {
	keep := newStatefulOp("keep", KindValue)
	fresh := NewChain().Add("keep", keep)

	states := StateMap{
		"keep":    mustSave(t, newStatefulWith(9)),
		"removed": []byte(`1`),
	}

	restored, dropped, err := fresh.RestoreStates(states)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 9, keep.counter)
}

// TestChain_RestoreStates_NonStatefulTarget verifies a snapshot aimed at
// an operator that no longer persists state is dropped.
func TestChain_RestoreStates_NonStatefulTarget(t *testing.T) {
	plain := newTestOp("op", KindValue)
	fresh := NewChain().Add("op", plain)

	restored, dropped, err := fresh.RestoreStates(StateMap{"op": []byte(`5`)})
	require.NoError(t, err)
	assert.Zero(t, restored)
	assert.Equal(t, 1, dropped)
}

// TestChain_RestoreStates_LoadFailure verifies a failing restore drops
// that snapshot and reports it without aborting the rest.
func TestChain_RestoreStates_LoadFailure(t *testing.T) {
	good := newStatefulOp("good", KindValue)
	bad := newStatefulOp("bad", KindValue)
	bad.restoreErr = errors.New("incompatible layout")

	fresh := NewChain().Add("good", good).Add("bad", bad)

	states := StateMap{
		"good": mustSave(t, newStatefulWith(3)),
		"bad":  mustSave(t, newStatefulWith(4)),
	}

	restored, dropped, err := fresh.RestoreStates(states)
	require.Error(t, err)

	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "restore", opErr.Op)

	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 3, good.counter)
}

// TestPersistStates_RoundTrip verifies a StateMap survives a trip
// through a snapshot store.
func TestPersistStates_RoundTrip(t *testing.T) {
	store := statestore.NewMemoryStore()
	defer store.Close()

	states := StateMap{
		"osc":  []byte(`{"phase":0.5}`),
		"gain": []byte(`{"level":0.8}`),
	}

	require.NoError(t, PersistStates(store, "session-1", 3, states))

	loaded, err := LoadPersistedStates(store, "session-1")
	require.NoError(t, err)
	assert.Equal(t, states, loaded)
}

// TestPersistStates_SessionIsolation verifies sessions do not leak into
// each other.
func TestPersistStates_SessionIsolation(t *testing.T) {
	store := statestore.NewMemoryStore()
	defer store.Close()

	require.NoError(t, PersistStates(store, "a", 1, StateMap{"op": []byte(`1`)}))
	require.NoError(t, PersistStates(store, "b", 1, StateMap{"op": []byte(`2`)}))

	loaded, err := LoadPersistedStates(store, "a")
	require.NoError(t, err)
	assert.Equal(t, StateMap{"op": []byte(`1`)}, loaded)
}

// TestLoadPersistedStates_EmptySession verifies an unknown session
// yields an empty map, not an error.
func TestLoadPersistedStates_EmptySession(t *testing.T) {
	store := statestore.NewMemoryStore()
	defer store.Close()

	loaded, err := LoadPersistedStates(store, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// newStatefulWith builds a stateful operator holding the given counter.
func newStatefulWith(v int) *statefulOp {
	op := newStatefulOp("tmp", KindValue)
	op.counter = v
	return op
}

// mustSave captures one operator's snapshot.
func mustSave(t *testing.T, op *statefulOp) []byte {
	t.Helper()
	data, err := op.SaveState()
	require.NoError(t, err)
	return data
}
