package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tid := id.NewTenantID()

	t.Run("member with tenant", func(t *testing.T) {
		ident, err := New(id.NewSubjectID(), "pat@example.com", roles.NewSet(roles.RoleMember), &tid, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ident.Version)
		assert.Equal(t, &tid, ident.TenantID)
	})

	t.Run("empty role set is the provisioning default", func(t *testing.T) {
		ident, err := New(id.NewSubjectID(), "pat@example.com", roles.NewSet(), &tid, now)
		require.NoError(t, err)
		assert.Empty(t, ident.Roles)
	})

	t.Run("nil subject", func(t *testing.T) {
		_, err := New(id.SubjectID{}, "pat@example.com", roles.NewSet(), nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("empty email", func(t *testing.T) {
		_, err := New(id.NewSubjectID(), "", roles.NewSet(), nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("roles are copied, not shared", func(t *testing.T) {
		set := roles.NewSet(roles.RoleMember)
		ident, err := New(id.NewSubjectID(), "pat@example.com", set, &tid, now)
		require.NoError(t, err)
		set[roles.RoleTreasurer] = struct{}{}
		assert.False(t, ident.Roles.Has(roles.RoleTreasurer))
	})
}

func TestValidateAssociation(t *testing.T) {
	tid := id.NewTenantID()

	t.Run("mixed tiers rejected", func(t *testing.T) {
		err := ValidateAssociation(roles.NewSet(roles.RoleSystemAdmin, roles.RoleMember), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("system tier with tenant rejected", func(t *testing.T) {
		err := ValidateAssociation(roles.NewSet(roles.RoleAuditor), &tid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("tenant tier without tenant rejected", func(t *testing.T) {
		err := ValidateAssociation(roles.NewSet(roles.RoleMember), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("tenant admin before onboarding", func(t *testing.T) {
		assert.NoError(t, ValidateAssociation(roles.NewSet(roles.RoleTenantAdmin), nil))
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		err := ValidateAssociation(roles.Set{"pastor": {}}, &tid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestClone(t *testing.T) {
	tid := id.NewTenantID()
	ident, err := New(id.NewSubjectID(), "pat@example.com", roles.NewSet(roles.RoleMember), &tid, time.Now())
	require.NoError(t, err)

	clone := ident.Clone()
	clone.Roles[roles.RoleTreasurer] = struct{}{}
	otherTenant := id.NewTenantID()
	*clone.TenantID = otherTenant

	assert.False(t, ident.Roles.Has(roles.RoleTreasurer))
	assert.Equal(t, tid, *ident.TenantID)
}
