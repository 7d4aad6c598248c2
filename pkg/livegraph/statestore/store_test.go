package statestore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/statestore"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) statestore.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		data := []byte(`{"phase": 0.5}`)
		err := store.Save("set-1", "osc", data)
		require.NoError(t, err)

		loaded, err := store.Load("set-1", "osc")
		require.NoError(t, err)
		assert.Equal(t, data, loaded)
	})

	t.Run(name+"/Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load("set-nonexistent", "osc")
		assert.ErrorIs(t, err, statestore.ErrNotFound)
	})

	t.Run(name+"/Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("first")))
		require.NoError(t, store.Save("set-1", "osc", []byte("second")))

		loaded, err := store.Load("set-1", "osc")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List("set-nonexistent")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run(name+"/List_Ordered", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("a")))
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
		require.NoError(t, store.Save("set-1", "filter", []byte("bb")))
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, store.Save("set-1", "gain", []byte("ccc")))

		infos, err := store.List("set-1")
		require.NoError(t, err)
		require.Len(t, infos, 3)

		// Ordered by save sequence
		assert.Equal(t, 1, infos[0].Sequence)
		assert.Equal(t, 2, infos[1].Sequence)
		assert.Equal(t, 3, infos[2].Sequence)

		assert.Equal(t, "osc", infos[0].Operator)
		assert.Equal(t, "filter", infos[1].Operator)
		assert.Equal(t, "gain", infos[2].Operator)

		assert.Equal(t, int64(1), infos[0].Size)
		assert.Equal(t, int64(2), infos[1].Size)
		assert.Equal(t, int64(3), infos[2].Size)
	})

	t.Run(name+"/Overwrite_MovesToEnd", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("a")))
		require.NoError(t, store.Save("set-1", "filter", []byte("b")))
		require.NoError(t, store.Save("set-1", "osc", []byte("a2")))

		infos, err := store.List("set-1")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "filter", infos[0].Operator)
		assert.Equal(t, "osc", infos[1].Operator, "a re-save becomes the newest snapshot")
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("data")))
		require.NoError(t, store.Delete("set-1", "osc"))

		_, err := store.Load("set-1", "osc")
		assert.ErrorIs(t, err, statestore.ErrNotFound)
	})

	t.Run(name+"/Delete_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		err := store.Delete("set-nonexistent", "osc")
		assert.NoError(t, err)
	})

	t.Run(name+"/DeleteSession", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("a")))
		require.NoError(t, store.Save("set-1", "gain", []byte("b")))
		require.NoError(t, store.Save("set-2", "osc", []byte("other")))

		require.NoError(t, store.DeleteSession("set-1"))

		infos, err := store.List("set-1")
		require.NoError(t, err)
		assert.Empty(t, infos)

		// Other sessions are untouched
		infos, err = store.List("set-2")
		require.NoError(t, err)
		assert.Len(t, infos, 1)
	})

	t.Run(name+"/DeleteSession_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		err := store.DeleteSession("set-nonexistent")
		assert.NoError(t, err)
	})

	t.Run(name+"/SessionIsolation", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("set-1", "osc", []byte("set1-osc")))
		require.NoError(t, store.Save("set-1", "gain", []byte("set1-gain")))
		require.NoError(t, store.Save("set-2", "osc", []byte("set2-osc")))

		data, err := store.Load("set-1", "osc")
		require.NoError(t, err)
		assert.Equal(t, []byte("set1-osc"), data)

		data, err = store.Load("set-2", "osc")
		require.NoError(t, err)
		assert.Equal(t, []byte("set2-osc"), data)

		infos1, _ := store.List("set-1")
		infos2, _ := store.List("set-2")
		assert.Len(t, infos1, 2)
		assert.Len(t, infos2, 1)
	})

	t.Run(name+"/DataCopy", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		original := []byte("original data")
		require.NoError(t, store.Save("set-1", "osc", original))

		// Modify original slice after save
		original[0] = 'X'

		loaded, err := store.Load("set-1", "osc")
		require.NoError(t, err)
		assert.Equal(t, []byte("original data"), loaded)
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		err := store.Save("set-1", "osc", []byte("data"))
		assert.ErrorIs(t, err, statestore.ErrStoreClosed)

		_, err = store.Load("set-1", "osc")
		assert.ErrorIs(t, err, statestore.ErrStoreClosed)

		_, err = store.List("set-1")
		assert.ErrorIs(t, err, statestore.ErrStoreClosed)
	})
}

// TestMemoryStore runs contract tests against MemoryStore.
func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) statestore.Store {
		return statestore.NewMemoryStore()
	}
	storeContractTest(t, "MemoryStore", factory)
}

// TestSQLiteStore runs contract tests against SQLiteStore.
func TestSQLiteStore(t *testing.T) {
	factory := func(t *testing.T) statestore.Store {
		store, err := statestore.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	}
	storeContractTest(t, "SQLiteStore", factory)
}
