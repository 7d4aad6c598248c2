package statestore

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store. It backs hosts that only
// need state to survive reloads, not restarts, and it is the store of
// choice in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]storedSnapshot // session -> operator -> snapshot
	closed bool
}

// storedSnapshot holds snapshot bytes with the metadata List needs.
type storedSnapshot struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]storedSnapshot),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(session, operator string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if m.data[session] == nil {
		m.data[session] = make(map[string]storedSnapshot)
	}

	// Sequence is max + 1 within the session
	seq := 1
	for _, snap := range m.data[session] {
		if snap.sequence >= seq {
			seq = snap.sequence + 1
		}
	}

	// Copy so the caller's slice is not retained
	stored := make([]byte, len(data))
	copy(stored, data)

	m.data[session][operator] = storedSnapshot{
		data:      stored,
		sequence:  seq,
		timestamp: time.Now().UTC(),
	}

	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(session, operator string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := m.data[session]
	if !ok {
		return nil, ErrNotFound
	}

	snap, ok := sess[operator]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(snap.data))
	copy(result, snap.data)
	return result, nil
}

// List implements Store.
func (m *MemoryStore) List(session string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := m.data[session]
	if !ok {
		return nil, nil
	}

	infos := make([]Info, 0, len(sess))
	for operator, snap := range sess {
		infos = append(infos, Info{
			Session:   session,
			Operator:  operator,
			Sequence:  snap.sequence,
			Timestamp: snap.timestamp,
			Size:      int64(len(snap.data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})

	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(session, operator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if sess, ok := m.data[session]; ok {
		delete(sess, operator)
	}
	return nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, session)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of snapshots across all sessions.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sess := range m.data {
		count += len(sess)
	}
	return count
}
