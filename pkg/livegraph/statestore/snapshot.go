package statestore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current snapshot envelope format version.
// Increment when making breaking changes to the envelope structure.
const Version = 1

// Snapshot is the persisted envelope around one operator's opaque state.
// The payload is whatever the operator's SaveState produced; the
// envelope adds the identity needed to route it back after a reload or
// a host restart.
type Snapshot struct {
	Version   int       `json:"version"`
	Session   string    `json:"session"`
	Operator  string    `json:"operator"`
	Build     int       `json:"build"`
	Timestamp time.Time `json:"timestamp"`

	// State is the operator's opaque payload. Encoded as base64 in JSON;
	// the core never inspects it.
	State []byte `json:"state"`
}

// New creates a snapshot envelope for an operator's state payload.
func New(session, operator string, build int, state []byte) *Snapshot {
	return &Snapshot{
		Version:   Version,
		Session:   session,
		Operator:  operator,
		Build:     build,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}

// Marshal serializes the envelope to JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserializes an envelope from JSON, rejecting versions newer
// than this package understands.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Version > Version {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, Version)
	}
	return &s, nil
}
