package roles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierPartition(t *testing.T) {
	t.Run("tiers are disjoint", func(t *testing.T) {
		for _, r := range SystemTier() {
			assert.False(t, IsTenantTier(r), "role %s in both tiers", r)
		}
		for _, r := range TenantTier() {
			assert.False(t, IsSystemTier(r), "role %s in both tiers", r)
		}
	})

	t.Run("assignable is a strict subset of tenant tier", func(t *testing.T) {
		for _, r := range Assignable() {
			assert.True(t, IsTenantTier(r), "assignable role %s not tenant tier", r)
		}
		assert.Less(t, len(Assignable()), len(TenantTier()))
	})

	t.Run("tenant_admin is not tenant-assignable", func(t *testing.T) {
		assert.False(t, IsTenantAssignable(RoleTenantAdmin))
	})

	t.Run("unknown role is in no tier", func(t *testing.T) {
		assert.False(t, Known("pope"))
		assert.False(t, IsSystemTier("pope"))
		assert.False(t, IsTenantTier("pope"))
	})
}

func TestSet(t *testing.T) {
	t.Run("order independent equality", func(t *testing.T) {
		a := NewSet(RoleMember, RoleViewer)
		b := NewSet(RoleViewer, RoleMember)
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Sorted(), b.Sorted())
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		s := NewSet(RoleMember, RoleMember, RoleViewer)
		assert.Len(t, s, 2)
	})

	t.Run("tier detection", func(t *testing.T) {
		assert.True(t, NewSet(RoleRootAdmin).HasSystemTier())
		assert.False(t, NewSet(RoleRootAdmin).HasTenantTier())
		assert.True(t, NewSet(RoleTenantAdmin, RoleMember).HasTenantTier())
		assert.False(t, NewSet().HasSystemTier())
	})

	t.Run("has any", func(t *testing.T) {
		s := NewSet(RoleMember, RoleViewer)
		assert.True(t, s.HasAny(RoleTreasurer, RoleViewer))
		assert.False(t, s.HasAny(RoleTreasurer, RoleSecretary))
		assert.False(t, s.HasAny())
	})

	t.Run("intersect", func(t *testing.T) {
		a := NewSet(RoleMember, RoleViewer, RoleSecretary)
		b := NewSet(RoleViewer, RoleSecretary, RoleTreasurer)
		assert.True(t, a.Intersect(b).Equal(NewSet(RoleViewer, RoleSecretary)))
		assert.Empty(t, a.Intersect(NewSet()))
	})

	t.Run("clone is independent", func(t *testing.T) {
		a := NewSet(RoleMember)
		b := a.Clone()
		b[RoleViewer] = struct{}{}
		assert.False(t, a.Has(RoleViewer))
	})
}

func TestSetJSON(t *testing.T) {
	t.Run("marshals sorted", func(t *testing.T) {
		s := NewSet(RoleViewer, RoleMember, RoleSecretary)
		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `["member","secretary","viewer"]`, string(data))
	})

	t.Run("round trip preserves set semantics", func(t *testing.T) {
		var s Set
		require.NoError(t, json.Unmarshal([]byte(`["viewer","member","member"]`), &s))
		assert.True(t, s.Equal(NewSet(RoleMember, RoleViewer)))
	})
}
