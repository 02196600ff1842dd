// Package account orchestrates user lifecycle operations. Role mutations are
// deliberately absent here; those go through the policy engine so a handler
// can never bypass the authorization checks.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shepherd/internal/audit"
	"shepherd/internal/identity"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
)

// AuditPublisher is the audit emission interface; see internal/audit/publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service provisions and updates user accounts.
type Service struct {
	identities identity.Store
	auditor    AuditPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
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

func NewService(identities identity.Store, auditor AuditPublisher, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		auditor:    auditor,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Provision creates a new account. The initial role set is constrained the
// same way a role mutation is: a tenant admin can only provision members of
// their own congregation with assignable roles, and only system actors can
// hand out system-tier roles.
func (s *Service) Provision(ctx context.Context, email, displayName string, roleSet roles.Set, tenantID *id.TenantID, actor *identity.Identity) (*identity.Identity, error) {
	if err := authorizeProvision(actor, roleSet, tenantID); err != nil {
		return nil, err
	}

	ident, err := identity.New(id.NewSubjectID(), normalizeEmail(email), roleSet, tenantID, s.now())
	if err != nil {
		return nil, err
	}
	ident.DisplayName = strings.TrimSpace(displayName)

	if err := s.identities.Save(ctx, ident); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to save account")
	}

	s.logger.InfoContext(ctx, "account provisioned",
		"subject_id", ident.SubjectID.String(),
		"actor", actor.SubjectID.String(),
	)
	after := map[string]any{
		"email": ident.Email,
		"roles": ident.Roles.Strings(),
	}
	if tenantID != nil {
		after["tenant_id"] = tenantID.String()
	}
	s.auditor.Emit(ctx, audit.Event{
		Type:             audit.EventUserProvisioned,
		ActorSubjectID:   actor.SubjectID,
		ActorDisplayName: actor.DisplayName,
		TargetID:         ident.SubjectID.String(),
		TargetType:       audit.TargetUser,
		Message:          "account provisioned",
		After:            after,
	})
	return ident, nil
}

// UpdateProfile changes email or display name. Empty arguments leave the
// field untouched. Callers may always edit their own profile; editing anyone
// else requires the same authority as provisioning them.
func (s *Service) UpdateProfile(ctx context.Context, subjectID id.SubjectID, email, displayName string, actor *identity.Identity) (*identity.Identity, error) {
	if actor == nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "profile update requires an authenticated actor")
	}

	target, err := s.identities.FindBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load account")
	}

	if actor.SubjectID != subjectID {
		if err := authorizeProvision(actor, target.Roles, target.TenantID); err != nil {
			return nil, err
		}
	}

	before := map[string]any{}
	after := map[string]any{}
	if email = normalizeEmail(email); email != "" && email != target.Email {
		before["email"] = target.Email
		after["email"] = email
		target.Email = email
	}
	if displayName = strings.TrimSpace(displayName); displayName != "" && displayName != target.DisplayName {
		before["display_name"] = target.DisplayName
		after["display_name"] = displayName
		target.DisplayName = displayName
	}
	if len(after) == 0 {
		return target, nil
	}

	expectedVersion := target.Version
	target.UpdatedAt = s.now()
	if err := s.identities.Update(ctx, target, expectedVersion); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account was modified concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to update account")
	}

	s.logger.InfoContext(ctx, "account updated",
		"subject_id", subjectID.String(),
		"actor", actor.SubjectID.String(),
	)
	s.auditor.Emit(ctx, audit.Event{
		Type:             audit.EventUserUpdated,
		ActorSubjectID:   actor.SubjectID,
		ActorDisplayName: actor.DisplayName,
		TargetID:         subjectID.String(),
		TargetType:       audit.TargetUser,
		Message:          "account updated",
		Before:           before,
		After:            after,
	})
	return target, nil
}

// authorizeProvision mirrors the policy engine's actor classification for
// account creation, where no target identity exists yet.
func authorizeProvision(actor *identity.Identity, roleSet roles.Set, tenantID *id.TenantID) error {
	if actor == nil {
		return dErrors.New(dErrors.CodeUnauthenticated, "account management requires an authenticated actor")
	}
	if actor.Roles.HasSystemTier() {
		return nil
	}
	if !actor.Roles.Has(roles.RoleTenantAdmin) {
		return dErrors.New(dErrors.CodeUnauthorized, "actor may not manage accounts")
	}
	if actor.TenantID == nil || tenantID == nil || *actor.TenantID != *tenantID {
		return dErrors.New(dErrors.CodeCrossTenant, "account belongs to a different congregation")
	}
	for _, r := range roleSet.Sorted() {
		if roles.IsSystemTier(r) {
			return dErrors.New(dErrors.CodePrivilegeEscalation, "only system administrators may grant "+string(r))
		}
		if !roles.IsTenantAssignable(r) {
			return dErrors.New(dErrors.CodeRoleNotAssignable, "role not assignable by a congregation admin: "+string(r))
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
