package reviewqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v8"
)

// RedisStore is a Redis-backed Store for deployments that run more than one
// API process in front of the same workflow engine instance, so every
// process sees the same pending-review set.
//
// Records are stored as JSON strings under "reviewqueue:record:{checkpoint_id}",
// with checkpoint ids tracked in the set "reviewqueue:index" for List.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore against an already-configured client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(checkpointID string) string {
	return "reviewqueue:record:" + checkpointID
}

const indexKey = "reviewqueue:index"

// Create implements Store.
func (r *RedisStore) Create(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("reviewqueue: marshal record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKey(rec.CheckpointID), body, 0)
	pipe.SAdd(ctx, indexKey, rec.CheckpointID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("reviewqueue: create: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, checkpointID string) (Record, error) {
	body, err := r.client.Get(ctx, recordKey(checkpointID)).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("reviewqueue: get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("reviewqueue: unmarshal record: %w", err)
	}
	return rec, nil
}

// List implements Store.
func (r *RedisStore) List(ctx context.Context, status string) ([]Record, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reviewqueue: list index: %w", err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Decide implements Store. Redis's WATCH/MULTI/EXEC gives the same
// check-then-set atomicity the in-memory store gets from its mutex, so a
// duplicate decision POST racing a legitimate one still only ever applies
// once.
func (r *RedisStore) Decide(ctx context.Context, checkpointID, decision, reviewerID, notes string, reviewedAt time.Time) (Record, error) {
	key := recordKey(checkpointID)
	var result Record
	var opErr error

	txf := func(tx *redis.Tx) error {
		body, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			opErr = ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return err
		}
		if rec.Status == StatusReviewed {
			result = rec
			opErr = ErrAlreadyReviewed
			return nil
		}

		rec.Status = StatusReviewed
		rec.Decision = decision
		rec.ReviewerID = reviewerID
		rec.ReviewerNotes = notes
		t := reviewedAt
		rec.ReviewedAt = &t

		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		result = rec
		return err
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		return Record{}, fmt.Errorf("reviewqueue: decide: %w", err)
	}
	return result, opErr
}
