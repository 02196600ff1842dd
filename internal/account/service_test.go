package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/account"
	"shepherd/internal/audit"
	"shepherd/internal/identity"
	"shepherd/internal/identity/store"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Emit(_ context.Context, event audit.Event) {
	p.events = append(p.events, event)
}

func newService(t *testing.T) (*account.Service, *store.InMemory, *capturingPublisher) {
	t.Helper()
	identities := store.NewInMemory()
	auditor := &capturingPublisher{}
	svc := account.NewService(identities, auditor,
		account.WithClock(func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		}),
	)
	return svc, identities, auditor
}

func seedActor(t *testing.T, identities *store.InMemory, set roles.Set, tenantID *id.TenantID) *identity.Identity {
	t.Helper()
	actor, err := identity.New(id.NewSubjectID(), "actor@example.com", set, tenantID, time.Now())
	require.NoError(t, err)
	actor.DisplayName = "The Actor"
	require.NoError(t, identities.Save(context.Background(), actor))
	return actor
}

func TestProvision(t *testing.T) {
	ctx := context.Background()

	t.Run("tenant admin provisions a member", func(t *testing.T) {
		svc, identities, auditor := newService(t)
		tid := id.NewTenantID()
		actor := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)

		created, err := svc.Provision(ctx, " Pat@Example.COM ", "Pat Doe",
			roles.NewSet(roles.RoleMember), &tid, actor)
		require.NoError(t, err)
		assert.Equal(t, "pat@example.com", created.Email)
		assert.Equal(t, "Pat Doe", created.DisplayName)
		assert.Equal(t, int64(1), created.Version)

		require.Len(t, auditor.events, 1)
		event := auditor.events[0]
		assert.Equal(t, audit.EventUserProvisioned, event.Type)
		assert.Nil(t, event.Before)
		assert.Equal(t, "pat@example.com", event.After["email"])
		assert.Equal(t, tid.String(), event.After["tenant_id"])
	})

	t.Run("tenant admin cannot provision into another congregation", func(t *testing.T) {
		svc, identities, auditor := newService(t)
		tid := id.NewTenantID()
		other := id.NewTenantID()
		actor := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)

		_, err := svc.Provision(ctx, "pat@example.com", "Pat", roles.NewSet(roles.RoleMember), &other, actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCrossTenant))
		assert.Empty(t, auditor.events)
	})

	t.Run("tenant admin cannot provision a system admin", func(t *testing.T) {
		svc, identities, _ := newService(t)
		tid := id.NewTenantID()
		actor := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)

		_, err := svc.Provision(ctx, "pat@example.com", "Pat", roles.NewSet(roles.RoleSystemAdmin), nil, actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCrossTenant) ||
			dErrors.HasCode(err, dErrors.CodePrivilegeEscalation))
	})

	t.Run("system admin provisions system-tier accounts", func(t *testing.T) {
		svc, identities, auditor := newService(t)
		actor := seedActor(t, identities, roles.NewSet(roles.RoleRootAdmin), nil)

		created, err := svc.Provision(ctx, "auditor@example.com", "Log Reader",
			roles.NewSet(roles.RoleAuditor), nil, actor)
		require.NoError(t, err)
		assert.True(t, created.Roles.Has(roles.RoleAuditor))
		assert.Len(t, auditor.events, 1)
	})

	t.Run("plain member may not provision", func(t *testing.T) {
		svc, identities, _ := newService(t)
		tid := id.NewTenantID()
		actor := seedActor(t, identities, roles.NewSet(roles.RoleMember), &tid)

		_, err := svc.Provision(ctx, "pat@example.com", "Pat", roles.NewSet(roles.RoleMember), &tid, actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("self edit records changed fields only", func(t *testing.T) {
		svc, identities, auditor := newService(t)
		tid := id.NewTenantID()
		admin := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)
		member, err := svc.Provision(ctx, "pat@example.com", "Pat", roles.NewSet(roles.RoleMember), &tid, admin)
		require.NoError(t, err)

		updated, err := svc.UpdateProfile(ctx, member.SubjectID, "", "Patricia Doe", member)
		require.NoError(t, err)
		assert.Equal(t, "Patricia Doe", updated.DisplayName)
		assert.Equal(t, "pat@example.com", updated.Email)
		assert.Equal(t, int64(2), updated.Version)

		require.Len(t, auditor.events, 2)
		event := auditor.events[1]
		assert.Equal(t, audit.EventUserUpdated, event.Type)
		assert.Equal(t, map[string]any{"display_name": "Pat"}, event.Before)
		assert.Equal(t, map[string]any{"display_name": "Patricia Doe"}, event.After)
	})

	t.Run("no-op update skips audit", func(t *testing.T) {
		svc, identities, auditor := newService(t)
		tid := id.NewTenantID()
		admin := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)
		member, err := svc.Provision(ctx, "pat@example.com", "Pat", roles.NewSet(roles.RoleMember), &tid, admin)
		require.NoError(t, err)

		_, err = svc.UpdateProfile(ctx, member.SubjectID, "pat@example.com", "Pat", member)
		require.NoError(t, err)
		assert.Len(t, auditor.events, 1, "only the provision event")
	})

	t.Run("member cannot edit another member", func(t *testing.T) {
		svc, identities, _ := newService(t)
		tid := id.NewTenantID()
		admin := seedActor(t, identities, roles.NewSet(roles.RoleTenantAdmin), &tid)
		a, err := svc.Provision(ctx, "a@example.com", "A", roles.NewSet(roles.RoleMember), &tid, admin)
		require.NoError(t, err)
		b, err := svc.Provision(ctx, "b@example.com", "B", roles.NewSet(roles.RoleMember), &tid, admin)
		require.NoError(t, err)

		_, err = svc.UpdateProfile(ctx, b.SubjectID, "", "Mallory", a)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, identities, _ := newService(t)
		actor := seedActor(t, identities, roles.NewSet(roles.RoleSystemAdmin), nil)

		_, err := svc.UpdateProfile(ctx, id.NewSubjectID(), "x@example.com", "", actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
