// Package audit captures privileged mutations as immutable, diffable events.
//
// Events are append-only: once written they are never updated or deleted.
// Timestamps are always assigned server-side at append so clock skew between
// callers cannot reorder the log.
package audit

import (
	"context"
	"time"

	id "shepherd/pkg/domain"
)

// EventType classifies audit events. The set is closed; add new values here
// rather than passing ad-hoc strings from call sites.
type EventType string

const (
	EventRoleUpdated       EventType = "role_updated"
	EventUserProvisioned   EventType = "user_provisioned"
	EventUserUpdated       EventType = "user_updated"
	EventTenantCreated     EventType = "tenant_created"
	EventTenantDisabled    EventType = "tenant_disabled"
	EventTenantReactivated EventType = "tenant_reactivated"
)

// TargetType names the kind of entity a mutation touched.
type TargetType string

const (
	TargetUser   TargetType = "user"
	TargetTenant TargetType = "tenant"
)

// Event is one privileged mutation. Before and After carry only the fields
// that actually changed; a field present in one must be present in the other.
type Event struct {
	ID               id.EventID
	Type             EventType
	ActorSubjectID   id.SubjectID
	ActorDisplayName string
	TargetID         string
	TargetType       TargetType
	Message          string
	Before           map[string]any
	After            map[string]any
	Metadata         map[string]string
	// CreatedAt is assigned by the store at append time. Any caller-supplied
	// value is ignored.
	CreatedAt time.Time
}

// Filter narrows event listings for the log-viewer UI.
type Filter struct {
	Type  EventType
	From  time.Time
	To    time.Time
	Limit int
}

// Store is the append-only persistence interface for audit events.
// Error Contract: Append assigns ID and CreatedAt; List returns events in
// descending CreatedAt order.
type Store interface {
	Append(ctx context.Context, event Event) (id.EventID, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
}
