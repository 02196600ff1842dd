package tenant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shepherd/internal/audit"
	"shepherd/internal/identity"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
)

// StatusProvider answers the one question the access router asks about a
// tenant. Kept minimal so the router does not depend on the full store.
type StatusProvider interface {
	Status(ctx context.Context, tenantID id.TenantID) (Status, error)
}

// Store defines the persistence interface for tenants.
// Error Contract: FindByID returns sentinel.ErrNotFound when the tenant does
// not exist; CreateIfNameAvailable returns sentinel.ErrAlreadyExists on a
// name collision.
type Store interface {
	CreateIfNameAvailable(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
}

// AuditPublisher is the audit emission interface; see internal/audit/publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Invalidator is implemented by the cached status decorator so tenant
// mutations become visible without waiting for the cache TTL.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID id.TenantID)
}

// Service owns tenant administration: creation, disable, reactivate. Every
// mutation requires a system-tier actor and emits exactly one audit event.
type Service struct {
	tenants     Store
	auditor     AuditPublisher
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithInvalidator registers a status cache to invalidate on mutations.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// WithClock replaces the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(tenants Store, auditor AuditPublisher, opts ...Option) *Service {
	s := &Service{
		tenants: tenants,
		auditor: auditor,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create provisions a new congregation. System-tier actors only.
func (s *Service) Create(ctx context.Context, name string, actor *identity.Identity) (*Tenant, error) {
	if err := requireSystemTier(actor); err != nil {
		return nil, err
	}

	t, err := New(id.NewTenantID(), name, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tenants.CreateIfNameAvailable(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant name already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to create tenant")
	}

	s.logger.InfoContext(ctx, "tenant created",
		"tenant_id", t.ID.String(),
		"actor", actor.SubjectID.String(),
	)
	s.auditor.Emit(ctx, audit.Event{
		Type:             audit.EventTenantCreated,
		ActorSubjectID:   actor.SubjectID,
		ActorDisplayName: actor.DisplayName,
		TargetID:         t.ID.String(),
		TargetType:       audit.TargetTenant,
		Message:          "tenant created",
		After:            map[string]any{"name": t.Name, "status": string(t.Status)},
	})
	return t, nil
}

// Disable suspends a congregation. System-tier actors only.
func (s *Service) Disable(ctx context.Context, tenantID id.TenantID, actor *identity.Identity) (*Tenant, error) {
	return s.transition(ctx, tenantID, actor, audit.EventTenantDisabled, "tenant disabled",
		func(t *Tenant, now time.Time) error { return t.Disable(now) })
}

// Reactivate lifts a suspension. System-tier actors only.
func (s *Service) Reactivate(ctx context.Context, tenantID id.TenantID, actor *identity.Identity) (*Tenant, error) {
	return s.transition(ctx, tenantID, actor, audit.EventTenantReactivated, "tenant reactivated",
		func(t *Tenant, now time.Time) error { return t.Reactivate(now) })
}

func (s *Service) transition(
	ctx context.Context,
	tenantID id.TenantID,
	actor *identity.Identity,
	eventType audit.EventType,
	message string,
	apply func(*Tenant, time.Time) error,
) (*Tenant, error) {
	if err := requireSystemTier(actor); err != nil {
		return nil, err
	}

	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load tenant")
	}

	before := string(t.Status)
	if err := apply(t, s.now()); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to update tenant")
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, tenantID)
	}

	s.logger.InfoContext(ctx, message,
		"tenant_id", tenantID.String(),
		"actor", actor.SubjectID.String(),
	)
	s.auditor.Emit(ctx, audit.Event{
		Type:             eventType,
		ActorSubjectID:   actor.SubjectID,
		ActorDisplayName: actor.DisplayName,
		TargetID:         tenantID.String(),
		TargetType:       audit.TargetTenant,
		Message:          message,
		Before:           map[string]any{"status": before},
		After:            map[string]any{"status": string(t.Status)},
	})
	return t, nil
}

func requireSystemTier(actor *identity.Identity) error {
	if actor == nil || !actor.Roles.HasSystemTier() {
		return dErrors.New(dErrors.CodeUnauthorized, "tenant administration requires a system-tier role")
	}
	return nil
}
