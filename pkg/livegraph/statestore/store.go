// Package statestore persists operator state snapshots across reloads
// and host restarts.
package statestore

import (
	"errors"
	"time"
)

// Store persists snapshot envelopes keyed by session and operator name.
// Saving under an existing (session, operator) pair overwrites, so a
// store only ever holds the latest snapshot per operator.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot for an operator within a session.
	// Overwrites any snapshot already stored for (session, operator).
	Save(session, operator string, data []byte) error

	// Load retrieves the latest snapshot for (session, operator).
	// Returns ErrNotFound if none exists.
	Load(session, operator string) ([]byte, error)

	// List returns metadata for every snapshot in a session, ordered by
	// save sequence. Returns an empty slice (not an error) for an
	// unknown session.
	List(session string) ([]Info, error)

	// Delete removes one snapshot. Returns nil if it doesn't exist.
	Delete(session, operator string) error

	// DeleteSession removes every snapshot for a session.
	// Returns nil if the session has none.
	DeleteSession(session string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides snapshot metadata without loading the payload.
type Info struct {
	Session   string
	Operator  string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no snapshot exists for the requested key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
