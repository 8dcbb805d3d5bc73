// Package reviewqueue persists Pending Review Records (spec §3.3): the
// externalized request for a human decision created when CHECKPOINT_HITL
// runs, and mutated exactly once when the decision API processes it.
package reviewqueue

import (
	"context"
	"errors"
	"time"
)

// Status values for Record.Status.
const (
	StatusPending  = "PENDING"
	StatusReviewed = "REVIEWED"
)

// ErrNotFound is returned when a requested checkpoint_id has no record.
var ErrNotFound = errors.New("reviewqueue: record not found")

// ErrAlreadyReviewed is returned by Decide when the record has already
// transitioned PENDING -> REVIEWED. This is the idempotency guard spec.md
// §9 asks for: a second identical decision POST must not re-run the
// workflow.
var ErrAlreadyReviewed = errors.New("reviewqueue: record already reviewed")

// Record is a Pending Review Record, per spec §3.3.
type Record struct {
	ReviewID      string
	ThreadID      string
	CheckpointID  string
	InvoiceID     string
	VendorName    string
	Amount        float64
	Currency      string
	MatchScore    float64
	MatchEvidence map[string]interface{}
	ReasonForHold string
	ReviewURL     string
	Status        string
	Decision      string
	ReviewerID    string
	ReviewerNotes string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
}

// Store persists Pending Review Records.
type Store interface {
	// Create inserts a new PENDING record.
	Create(ctx context.Context, rec Record) error

	// Get returns the record for checkpointID.
	Get(ctx context.Context, checkpointID string) (Record, error)

	// List returns every record whose Status equals status, or every
	// record if status is empty.
	List(ctx context.Context, status string) ([]Record, error)

	// Decide transitions the record for checkpointID from PENDING to
	// REVIEWED, recording decision/reviewerID/notes and ReviewedAt. It
	// returns ErrAlreadyReviewed (not an error to the caller's workflow,
	// just a signal) if the record is already REVIEWED, so the HTTP layer
	// can treat a duplicate decision POST as idempotent success.
	Decide(ctx context.Context, checkpointID, decision, reviewerID, notes string, reviewedAt time.Time) (Record, error)
}
