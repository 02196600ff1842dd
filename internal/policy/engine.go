// Package policy guards every role mutation. The checks are evaluated in a
// fixed order so callers always see the same denial for the same request,
// regardless of map iteration or concurrent traffic.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shepherd/internal/audit"
	"shepherd/internal/identity"
	"shepherd/internal/platform/metrics"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
)

// AuditPublisher is the audit emission interface; see internal/audit/publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Change is the result of an applied role mutation.
type Change struct {
	Target  *identity.Identity
	Before  roles.Set
	After   roles.Set
	Applied time.Time
}

// Engine authorizes and applies role mutations. The decision logic itself is
// pure (Evaluate); the engine adds the load, the compare-and-swap persist,
// and the audit emission.
type Engine struct {
	identities identity.Store
	auditor    AuditPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(identities identity.Store, auditor AuditPublisher, opts ...Option) *Engine {
	e := &Engine{
		identities: identities,
		auditor:    auditor,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Evaluate decides whether actor may set target's roles to newRoles. It is
// pure: no I/O, no clock, safe under unbounded concurrency. A nil return
// means the mutation is permitted.
//
// Checks, in order:
//  1. actor must hold a system-tier role or tenant_admin
//  2. tenant_admin may only touch targets inside their own congregation
//  3. tenant_admin may only grant tenant-assignable roles
//  4. only system-tier actors may grant system-tier roles
func Evaluate(actor, target *identity.Identity, newRoles roles.Set) error {
	if actor == nil {
		return dErrors.New(dErrors.CodeUnauthenticated, "role mutation requires an authenticated actor")
	}

	actorIsSystem := actor.Roles.HasSystemTier()
	actorIsTenantAdmin := actor.Roles.Has(roles.RoleTenantAdmin)
	if !actorIsSystem && !actorIsTenantAdmin {
		return dErrors.New(dErrors.CodeUnauthorized, "actor may not manage roles")
	}

	if actorIsTenantAdmin && !actorIsSystem {
		if actor.TenantID == nil || target.TenantID == nil || *actor.TenantID != *target.TenantID {
			return dErrors.New(dErrors.CodeCrossTenant, "target belongs to a different congregation")
		}
		for _, r := range newRoles.Sorted() {
			if !roles.IsTenantAssignable(r) && !roles.IsSystemTier(r) {
				return dErrors.New(dErrors.CodeRoleNotAssignable, "role not assignable by a congregation admin: "+string(r))
			}
		}
	}

	if !actorIsSystem {
		for _, r := range newRoles.Sorted() {
			if roles.IsSystemTier(r) {
				return dErrors.New(dErrors.CodePrivilegeEscalation, "only system administrators may grant "+string(r))
			}
		}
	}

	return nil
}

// ProposeRoleChange runs the full mutation flow: load, authorize, validate
// the resulting identity, persist with a version compare-and-swap, audit.
//
// Failure modes:
//   - not_found: target does not exist
//   - unauthorized, cross_tenant, role_not_assignable, privilege_escalation
//   - invariant_violation: the new role set breaks the tier or tenant rules
//   - conflict: target was mutated concurrently; reload and retry
//   - store_unavailable: persistence failed
func (e *Engine) ProposeRoleChange(ctx context.Context, targetID id.SubjectID, newRoles roles.Set, actor *identity.Identity) (*Change, error) {
	target, err := e.identities.FindBySubject(ctx, targetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "target identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to load target identity")
	}

	if err := Evaluate(actor, target, newRoles); err != nil {
		e.deny(ctx, actor, targetID, err)
		return nil, err
	}

	if err := identity.ValidateAssociation(newRoles, target.TenantID); err != nil {
		e.deny(ctx, actor, targetID, err)
		return nil, err
	}

	before := target.Roles.Clone()
	if before.Equal(newRoles) {
		// No-op change: nothing to persist, nothing to audit.
		return &Change{Target: target, Before: before, After: before.Clone(), Applied: e.now()}, nil
	}

	expectedVersion := target.Version
	target.Roles = newRoles.Clone()
	target.UpdatedAt = e.now()
	if err := e.identities.UpdateRoles(ctx, target, expectedVersion); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "target identity was modified concurrently")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "target identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to persist role change")
	}

	e.logger.InfoContext(ctx, "roles updated",
		"target", targetID.String(),
		"actor", actor.SubjectID.String(),
		"roles", newRoles.Strings(),
	)
	e.auditor.Emit(ctx, audit.Event{
		Type:             audit.EventRoleUpdated,
		ActorSubjectID:   actor.SubjectID,
		ActorDisplayName: actor.DisplayName,
		TargetID:         targetID.String(),
		TargetType:       audit.TargetUser,
		Message:          "roles updated",
		Before:           map[string]any{"roles": before.Strings()},
		After:            map[string]any{"roles": newRoles.Strings()},
	})

	return &Change{
		Target:  target,
		Before:  before,
		After:   newRoles.Clone(),
		Applied: target.UpdatedAt,
	}, nil
}

func (e *Engine) deny(ctx context.Context, actor *identity.Identity, targetID id.SubjectID, cause error) {
	reason := string(dErrors.CodeOf(cause))
	metrics.PolicyDenials.WithLabelValues(reason).Inc()
	actorID := "anonymous"
	if actor != nil {
		actorID = actor.SubjectID.String()
	}
	e.logger.WarnContext(ctx, "role mutation denied",
		"reason", reason,
		"actor", actorID,
		"target", targetID.String(),
	)
}
