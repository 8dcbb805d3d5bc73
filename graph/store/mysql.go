package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed implementation of Store[S], for deployments
// that already run MySQL and want checkpoints there rather than in a
// SQLite file. Schema and semantics mirror SQLiteStore exactly.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL-backed checkpoint store using dsn (see
// github.com/go-sql-driver/mysql's DSN format) and ensures the checkpoints
// table exists.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id VARCHAR(128) NOT NULL,
			version INT NOT NULL,
			state_json LONGTEXT NOT NULL,
			position_node VARCHAR(64) NOT NULL,
			pending_interrupt TINYINT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			PRIMARY KEY (thread_id, version)
		);
	`); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &MySQLStore[S]{db: db}, nil
}

// Close releases the underlying database handle.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}

// SaveCheckpoint implements Store.
func (s *MySQLStore[S]) SaveCheckpoint(ctx context.Context, rec CheckpointRecord[S]) (CheckpointRecord[S], error) {
	var zero CheckpointRecord[S]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var nextVersion int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM checkpoints WHERE thread_id = ? FOR UPDATE`, rec.ThreadID)
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
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, version, state_json, position_node, pending_interrupt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ThreadID, rec.Version, string(stateJSON), rec.PositionNode, pending, rec.Timestamp)
	if err != nil {
		return zero, fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit tx: %w", err)
	}
	return rec, nil
}

// LoadLatest implements Store.
func (s *MySQLStore[S]) LoadLatest(ctx context.Context, threadID string) (CheckpointRecord[S], error) {
	var zero CheckpointRecord[S]
	row := s.db.QueryRowContext(ctx, `
		SELECT version, state_json, position_node, pending_interrupt, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY version DESC LIMIT 1
	`, threadID)
	rec, err := scanMySQLRow[S](row.Scan, threadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return rec, nil
}

// History implements Store.
func (s *MySQLStore[S]) History(ctx context.Context, threadID string) ([]CheckpointRecord[S], error) {
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
		rec, err := scanMySQLRow[S](rows.Scan, threadID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ThreadIDs implements Store.
func (s *MySQLStore[S]) ThreadIDs(ctx context.Context) ([]string, error) {
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

func scanMySQLRow[S any](scan func(dest ...any) error, threadID string) (CheckpointRecord[S], error) {
	var zero CheckpointRecord[S]
	var stateJSON string
	var pending int
	var rec CheckpointRecord[S]
	var createdAt time.Time
	if err := scan(&rec.Version, &stateJSON, &rec.PositionNode, &pending, &createdAt); err != nil {
		return zero, err
	}
	rec.ThreadID = threadID
	rec.PendingInterrupt = pending != 0
	rec.Timestamp = createdAt
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return zero, fmt.Errorf("unmarshal state: %w", err)
	}
	return rec, nil
}
