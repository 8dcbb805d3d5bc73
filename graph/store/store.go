// Package store provides persistence implementations for workflow checkpoints.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested thread id has no checkpoint.
var ErrNotFound = errors.New("not found")

// CheckpointRecord is the persisted snapshot of a workflow run, per spec
// §3.2: (thread_id, version, serialized_state, position_node,
// pending_interrupt?). Versions form a per-thread chain — each call to
// SaveCheckpoint for a given ThreadID produces the next Version.
//
// State is stored generically (S, the workflow state type) rather than as
// an opaque blob; implementations that need an actual serialized form (the
// SQL-backed stores) marshal it to JSON internally.
type CheckpointRecord[S any] struct {
	ThreadID         string
	Version          int
	State            S
	PositionNode     string
	PendingInterrupt bool
	Timestamp        time.Time
}

// Store provides persistence for workflow checkpoints, keyed by thread id.
//
// Implementations: MemStore (in-process, default), SQLiteStore (default
// persistent backend, pure-Go via modernc.org/sqlite), MySQLStore (optional
// persistent backend via go-sql-driver/mysql). All three satisfy the same
// per-key mutual-exclusion guarantee called for in spec §5: concurrent
// SaveCheckpoint calls for the same ThreadID never interleave.
type Store[S any] interface {
	// SaveCheckpoint appends the next version for rec.ThreadID and persists
	// it durably. The caller supplies PositionNode and PendingInterrupt;
	// Version and Timestamp are assigned by the store.
	SaveCheckpoint(ctx context.Context, rec CheckpointRecord[S]) (CheckpointRecord[S], error)

	// LoadLatest returns the highest-Version checkpoint for threadID, or
	// ErrNotFound if none exists.
	LoadLatest(ctx context.Context, threadID string) (CheckpointRecord[S], error)

	// History returns every checkpoint for threadID in ascending Version
	// order. Used by /workflow/status/{thread_id} to report
	// stages-completed.
	History(ctx context.Context, threadID string) ([]CheckpointRecord[S], error)

	// ThreadIDs returns every thread id the store has ever seen, for
	// GET /workflow/all.
	ThreadIDs(ctx context.Context) ([]string, error)
}
