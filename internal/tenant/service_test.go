package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/audit"
	"shepherd/internal/identity"
	"shepherd/internal/roles"
	"shepherd/internal/tenant"
	"shepherd/internal/tenant/store"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Emit(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

func systemAdmin(t *testing.T) *identity.Identity {
	t.Helper()
	ident, err := identity.New(
		id.NewSubjectID(),
		"ops@example.com",
		roles.NewSet(roles.RoleSystemAdmin),
		nil,
		time.Now(),
	)
	require.NoError(t, err)
	ident.DisplayName = "Ops Admin"
	return ident
}

func tenantMember(t *testing.T, tenantID id.TenantID) *identity.Identity {
	t.Helper()
	ident, err := identity.New(
		id.NewSubjectID(),
		"member@example.com",
		roles.NewSet(roles.RoleMember),
		&tenantID,
		time.Now(),
	)
	require.NoError(t, err)
	return ident
}

func newService(t *testing.T) (*tenant.Service, *store.InMemory, *capturingPublisher) {
	t.Helper()
	tenants := store.NewInMemory()
	auditor := &capturingPublisher{}
	svc := tenant.NewService(tenants, auditor,
		tenant.WithClock(func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		}),
	)
	return svc, tenants, auditor
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("system admin creates tenant with one audit event", func(t *testing.T) {
		svc, tenants, auditor := newService(t)
		actor := systemAdmin(t)

		created, err := svc.Create(ctx, "Grace Fellowship", actor)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusActive, created.Status)

		stored, err := tenants.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Grace Fellowship", stored.Name)

		require.Len(t, auditor.events, 1)
		event := auditor.events[0]
		assert.Equal(t, audit.EventTenantCreated, event.Type)
		assert.Equal(t, actor.SubjectID, event.ActorSubjectID)
		assert.Equal(t, created.ID.String(), event.TargetID)
		assert.Equal(t, audit.TargetTenant, event.TargetType)
		assert.Equal(t, "active", event.After["status"])
	})

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		svc, _, auditor := newService(t)
		actor := systemAdmin(t)

		_, err := svc.Create(ctx, "Grace Fellowship", actor)
		require.NoError(t, err)

		_, err = svc.Create(ctx, "grace fellowship", actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Len(t, auditor.events, 1, "failed create must not audit")
	})

	t.Run("tenant-tier actor is rejected", func(t *testing.T) {
		svc, _, auditor := newService(t)
		actor := tenantMember(t, id.NewTenantID())

		_, err := svc.Create(ctx, "Grace Fellowship", actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Empty(t, auditor.events)
	})
}

func TestServiceDisableReactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("disable emits one event with before and after status", func(t *testing.T) {
		svc, _, auditor := newService(t)
		actor := systemAdmin(t)
		created, err := svc.Create(ctx, "Hope Chapel", actor)
		require.NoError(t, err)

		disabled, err := svc.Disable(ctx, created.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusDisabled, disabled.Status)

		require.Len(t, auditor.events, 2)
		event := auditor.events[1]
		assert.Equal(t, audit.EventTenantDisabled, event.Type)
		assert.Equal(t, "active", event.Before["status"])
		assert.Equal(t, "disabled", event.After["status"])
	})

	t.Run("reactivate restores access", func(t *testing.T) {
		svc, tenants, auditor := newService(t)
		actor := systemAdmin(t)
		created, err := svc.Create(ctx, "Hope Chapel", actor)
		require.NoError(t, err)
		_, err = svc.Disable(ctx, created.ID, actor)
		require.NoError(t, err)

		reactivated, err := svc.Reactivate(ctx, created.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusActive, reactivated.Status)

		status, err := tenants.Status(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusActive, status)

		require.Len(t, auditor.events, 3)
		assert.Equal(t, audit.EventTenantReactivated, auditor.events[2].Type)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Disable(ctx, id.NewTenantID(), systemAdmin(t))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("double disable violates the lifecycle invariant", func(t *testing.T) {
		svc, _, auditor := newService(t)
		actor := systemAdmin(t)
		created, err := svc.Create(ctx, "Hope Chapel", actor)
		require.NoError(t, err)
		_, err = svc.Disable(ctx, created.ID, actor)
		require.NoError(t, err)

		_, err = svc.Disable(ctx, created.ID, actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Len(t, auditor.events, 2, "failed disable must not audit")
	})
}
