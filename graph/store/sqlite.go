package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It is the default durable backend: a single file, WAL mode for
// concurrent reads, zero external dependencies beyond the pure-Go
// modernc.org/sqlite driver. One row per checkpoint version, so History
// and LoadLatest are simple indexed queries.
type SQLiteStore[S any] struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; WAL gives concurrent readers for free
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed checkpoint
// store at path. Use ":memory:" for an ephemeral store with the same
// schema as the durable one, useful in tests that want to exercise the SQL
// path without a file on disk.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A pooled connection per query would otherwise see a fresh, empty
	// ":memory:" database each time; a single connection keeps every
	// caller on the same in-memory instance.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			state_json TEXT NOT NULL,
			position_node TEXT NOT NULL,
			pending_interrupt INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (thread_id, version)
		);
	`); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &SQLiteStore[S]{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}

// SaveCheckpoint implements Store.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, rec CheckpointRecord[S]) (CheckpointRecord[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero CheckpointRecord[S]
	var nextVersion int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM checkpoints WHERE thread_id = ?`, rec.ThreadID)
	if err := row.Scan(&nextVersion); err != nil {
		return zero, fmt.Errorf("compute next version: %w", err)
	}

	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return zero, fmt.Errorf("marshal state: %w", err)
	}

	rec.Version = nextVersion
	rec.Timestamp = time.Now()

	pending := 0
	if rec.PendingInterrupt {
		pending = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, version, state_json, position_node, pending_interrupt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ThreadID, rec.Version, string(stateJSON), rec.PositionNode, pending, rec.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return zero, fmt.Errorf("insert checkpoint: %w", err)
	}
	return rec, nil
}

// LoadLatest implements Store.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, threadID string) (CheckpointRecord[S], error) {
	var zero CheckpointRecord[S]
	row := s.db.QueryRowContext(ctx, `
		SELECT version, state_json, position_node, pending_interrupt, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY version DESC LIMIT 1
	`, threadID)
	rec, err := scanCheckpointRow[S](row.Scan, threadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return rec, nil
}

// History implements Store.
func (s *SQLiteStore[S]) History(ctx context.Context, threadID string) ([]CheckpointRecord[S], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, state_json, position_node, pending_interrupt, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY version ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []CheckpointRecord[S]
	for rows.Next() {
		rec, err := scanCheckpointRow[S](rows.Scan, threadID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ThreadIDs implements Store.
func (s *SQLiteStore[S]) ThreadIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT thread_id FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("query thread ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCheckpointRow[S any](scan func(dest ...any) error, threadID string) (CheckpointRecord[S], error) {
	var zero CheckpointRecord[S]
	var stateJSON, createdAt string
	var pending int
	var rec CheckpointRecord[S]
	if err := scan(&rec.Version, &stateJSON, &rec.PositionNode, &pending, &createdAt); err != nil {
		return zero, err
	}
	rec.ThreadID = threadID
	rec.PendingInterrupt = pending != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.Timestamp = ts
	}
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return zero, fmt.Errorf("unmarshal state: %w", err)
	}
	return rec, nil
}
