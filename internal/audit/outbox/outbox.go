// Package outbox implements the transactional outbox for audit events.
// Events are written to the outbox table in the same transaction as the
// audit row and published to Kafka by the worker afterwards.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry represents a pending event in the outbox table.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // e.g. "user", "tenant"
	AggregateID   string
	EventType     string // e.g. "role_updated"
	Payload       []byte // JSON-encoded audit event
	CreatedAt     time.Time
	ProcessedAt   *time.Time // NULL = pending, non-NULL = published
}

// IsPending returns true if this entry has not been processed yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a new outbox entry with a generated UUID.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

// Store defines the outbox persistence operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// Implementations should use row-level locking (FOR UPDATE SKIP LOCKED)
	// to support concurrent workers.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	// MarkProcessed marks an entry as successfully published.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending returns the number of unprocessed entries, for monitoring.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes old processed entries for cleanup.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
