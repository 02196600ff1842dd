package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shepherd/internal/audit"
	"shepherd/internal/audit/outbox"
	id "shepherd/pkg/domain"
)

// Store implements audit.Store using PostgreSQL. Each append writes the event
// row and an outbox entry in one transaction; the outbox worker publishes the
// entry to Kafka afterwards. The audit_events table is append-only: no UPDATE
// or DELETE statement exists anywhere in this package.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// eventPayload is the JSON structure written to the outbox and published to Kafka.
type eventPayload struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	ActorSubjectID   string            `json:"actor_subject_id"`
	ActorDisplayName string            `json:"actor_display_name,omitempty"`
	TargetID         string            `json:"target_id"`
	TargetType       string            `json:"target_type"`
	Message          string            `json:"message,omitempty"`
	Before           map[string]any    `json:"before,omitempty"`
	After            map[string]any    `json:"after,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        string            `json:"created_at"`
}

// Append inserts the event with a server-assigned timestamp and enqueues it on
// the outbox. The caller-supplied CreatedAt is ignored; now() comes from the
// database so ordering is consistent across application instances.
func (s *Store) Append(ctx context.Context, event audit.Event) (id.EventID, error) {
	eventID := id.NewEventID()

	beforeJSON, err := marshalSnapshot(event.Before)
	if err != nil {
		return id.EventID{}, fmt.Errorf("marshal before snapshot: %w", err)
	}
	afterJSON, err := marshalSnapshot(event.After)
	if err != nil {
		return id.EventID{}, fmt.Errorf("marshal after snapshot: %w", err)
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return id.EventID{}, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return id.EventID{}, fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var createdAt time.Time
	insertEvent := `
		INSERT INTO audit_events (
			id, type, actor_subject_id, actor_display_name,
			target_id, target_type, message, before, after, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, insertEvent,
		uuid.UUID(eventID),
		string(event.Type),
		uuid.UUID(event.ActorSubjectID),
		event.ActorDisplayName,
		event.TargetID,
		string(event.TargetType),
		event.Message,
		beforeJSON,
		afterJSON,
		metadataJSON,
	).Scan(&createdAt)
	if err != nil {
		return id.EventID{}, fmt.Errorf("insert audit event: %w", err)
	}

	payload := eventPayload{
		ID:               eventID.String(),
		Type:             string(event.Type),
		ActorSubjectID:   event.ActorSubjectID.String(),
		ActorDisplayName: event.ActorDisplayName,
		TargetID:         event.TargetID,
		TargetType:       string(event.TargetType),
		Message:          event.Message,
		Before:           event.Before,
		After:            event.After,
		Metadata:         event.Metadata,
		CreatedAt:        createdAt.Format(time.RFC3339Nano),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return id.EventID{}, fmt.Errorf("marshal outbox payload: %w", err)
	}

	entry := outbox.NewEntry(string(event.TargetType), event.TargetID, string(event.Type), payloadBytes)
	insertOutbox := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertOutbox,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, entry.Payload, entry.CreatedAt,
	); err != nil {
		return id.EventID{}, fmt.Errorf("insert outbox entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return id.EventID{}, fmt.Errorf("commit audit append: %w", err)
	}
	return eventID, nil
}

// List returns matching events, newest first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	query := `
		SELECT id, type, actor_subject_id, actor_display_name,
		       target_id, target_type, message, before, after, metadata, created_at
		FROM audit_events
		WHERE ($1 = '' OR type = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC
		LIMIT $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query,
		string(filter.Type),
		nullableTime(filter.From),
		nullableTime(filter.To),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event        audit.Event
			eventID      uuid.UUID
			eventType    string
			actorID      uuid.UUID
			targetType   string
			beforeJSON   []byte
			afterJSON    []byte
			metadataJSON []byte
		)
		err := rows.Scan(
			&eventID,
			&eventType,
			&actorID,
			&event.ActorDisplayName,
			&event.TargetID,
			&targetType,
			&event.Message,
			&beforeJSON,
			&afterJSON,
			&metadataJSON,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = id.EventID(eventID)
		event.Type = audit.EventType(eventType)
		event.ActorSubjectID = id.SubjectID(actorID)
		event.TargetType = audit.TargetType(targetType)
		if err := unmarshalSnapshot(beforeJSON, &event.Before); err != nil {
			return nil, err
		}
		if err := unmarshalSnapshot(afterJSON, &event.After); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func marshalSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}

func unmarshalSnapshot(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
