package domain

import (
	"context"
	"time"
)

// StatusUpdate carries the fields written by a single state transition.
// Exactly one of Risk (for ASSESSED) or ErrorMessage (for ERROR) is set.
type StatusUpdate struct {
	Status       Status
	Risk         *RiskAssessment
	AssessedAt   time.Time
	ErrorMessage string
}

// EventStore is the persistence capability consumed by the pipeline and
// the safety engine. It is the single source of truth and the only shared
// mutable resource: all cross-instance coordination goes through
// ConditionalUpdate, never through in-process locks.
type EventStore interface {
	// Create persists a new event record.
	Create(ctx context.Context, event Event) error

	// Get returns the event with the given record id, or ErrEventNotFound.
	Get(ctx context.Context, id string) (Event, error)

	// List returns up to limit events with the given status, in no
	// particular order.
	List(ctx context.Context, status Status, limit int) ([]Event, error)

	// ConditionalUpdate applies update to the record only if its current
	// status equals expected (compare-and-set). It returns false, without
	// error, when the record has already been transitioned by another
	// worker; that outcome is expected contention, not a fault.
	ConditionalUpdate(ctx context.Context, id string, expected Status, update StatusUpdate) (bool, error)
}
