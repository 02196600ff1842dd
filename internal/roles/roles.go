// Package roles defines the platform's role taxonomy as static, auditable data.
//
// Roles are partitioned into two tiers. System-tier roles apply platform-wide
// and are held by operator staff with no tenant association. Tenant-tier roles
// apply within exactly one congregation. The assignable subset lists the roles
// a tenant admin may grant; appointing tenant admins themselves is a
// system-tier operation.
//
// Every role check in the codebase goes through this package so the hierarchy
// lives in one place instead of being repeated at each mutation call site.
package roles

import (
	"encoding/json"
	"sort"
)

// RoleName is a named capability grant. The set of values is closed.
type RoleName string

const (
	// System tier - platform operators, no tenant association.
	RoleRootAdmin   RoleName = "root_admin"
	RoleSystemAdmin RoleName = "system_admin"
	RoleSupport     RoleName = "support"
	RoleAuditor     RoleName = "auditor"

	// Tenant tier - scoped to one congregation.
	RoleTenantAdmin   RoleName = "tenant_admin"
	RoleMember        RoleName = "member"
	RoleViewer        RoleName = "viewer"
	RoleWorshipLeader RoleName = "worship_leader"
	RoleSecretary     RoleName = "secretary"
	RoleTreasurer     RoleName = "treasurer"
)

var systemTier = map[RoleName]struct{}{
	RoleRootAdmin:   {},
	RoleSystemAdmin: {},
	RoleSupport:     {},
	RoleAuditor:     {},
}

var tenantTier = map[RoleName]struct{}{
	RoleTenantAdmin:   {},
	RoleMember:        {},
	RoleViewer:        {},
	RoleWorshipLeader: {},
	RoleSecretary:     {},
	RoleTreasurer:     {},
}

// tenantAssignable is the subset of tenant-tier roles a tenant admin may grant.
// RoleTenantAdmin is deliberately excluded: only system-tier actors appoint
// tenant admins, otherwise a compromised admin account could mint more admins.
var tenantAssignable = map[RoleName]struct{}{
	RoleMember:        {},
	RoleViewer:        {},
	RoleWorshipLeader: {},
	RoleSecretary:     {},
	RoleTreasurer:     {},
}

// Known reports whether s is a member of the closed role enumeration.
func Known(s RoleName) bool {
	_, sys := systemTier[s]
	_, ten := tenantTier[s]
	return sys || ten
}

// IsSystemTier reports whether r is a platform-wide operator role.
func IsSystemTier(r RoleName) bool {
	_, ok := systemTier[r]
	return ok
}

// IsTenantTier reports whether r applies within a single tenant.
func IsTenantTier(r RoleName) bool {
	_, ok := tenantTier[r]
	return ok
}

// IsTenantAssignable reports whether a tenant admin may grant r.
func IsTenantAssignable(r RoleName) bool {
	_, ok := tenantAssignable[r]
	return ok
}

// SystemTier returns the system-tier roles in stable order.
func SystemTier() []RoleName { return sortedKeys(systemTier) }

// TenantTier returns the tenant-tier roles in stable order.
func TenantTier() []RoleName { return sortedKeys(tenantTier) }

// Assignable returns the tenant-assignable roles in stable order.
func Assignable() []RoleName { return sortedKeys(tenantAssignable) }

func sortedKeys(m map[RoleName]struct{}) []RoleName {
	out := make([]RoleName, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set is an order-independent collection of role names. The zero value is an
// empty, usable set for reads; use NewSet to build one from a slice.
type Set map[RoleName]struct{}

// NewSet builds a Set from role names, discarding duplicates.
func NewSet(names ...RoleName) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s Set) Has(r RoleName) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether the set contains at least one of the given roles.
func (s Set) HasAny(names ...RoleName) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Intersect returns the roles present in both sets.
func (s Set) Intersect(other Set) Set {
	out := make(Set)
	for r := range s {
		if other.Has(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

// HasSystemTier reports whether the set contains any system-tier role.
func (s Set) HasSystemTier() bool {
	for r := range s {
		if IsSystemTier(r) {
			return true
		}
	}
	return false
}

// HasTenantTier reports whether the set contains any tenant-tier role.
func (s Set) HasTenantTier() bool {
	for r := range s {
		if IsTenantTier(r) {
			return true
		}
	}
	return false
}

// Equal reports whether two sets hold exactly the same roles.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Sorted returns the roles in lexical order. Use this wherever role order must
// be deterministic: JSON output, audit snapshots, first-offender selection.
func (s Set) Sorted() []RoleName {
	out := make([]RoleName, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted roles as plain strings, for logs and snapshots.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = string(r)
	}
	return out
}

// MarshalJSON encodes the set as a sorted array so output is deterministic.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a role array, discarding duplicates.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []RoleName
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}
