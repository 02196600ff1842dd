package identity

import (
	"time"

	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// Identity is the resolved caller record: subject id, role set, and tenant
// association. It is read-only to the authorization core; mutations happen
// only through the account orchestrator, which routes role changes through
// the policy engine.
//
// Invariants:
//   - Roles never mixes system-tier and tenant-tier entries
//   - System-tier identities carry no tenant; tenant-tier identities carry one
//   - Version increases by one on every persisted mutation
type Identity struct {
	SubjectID   id.SubjectID
	Email       string
	DisplayName string
	Roles       roles.Set
	TenantID    *id.TenantID
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New constructs an Identity and enforces the tier invariants. An empty role
// set is valid: it is the default for a freshly invited congregation member.
func New(subjectID id.SubjectID, email string, roleSet roles.Set, tenantID *id.TenantID, now time.Time) (*Identity, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject ID cannot be nil")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email cannot be empty")
	}
	if err := ValidateAssociation(roleSet, tenantID); err != nil {
		return nil, err
	}
	return &Identity{
		SubjectID: subjectID,
		Email:     email,
		Roles:     roleSet.Clone(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateAssociation checks the role/tenant invariants shared by construction
// and role mutation: no mixed tiers, system tier ⇒ no tenant, tenant tier ⇒
// tenant present. A tenant admin without a tenant is the one sanctioned
// exception - that is the onboarding state before their congregation exists.
func ValidateAssociation(roleSet roles.Set, tenantID *id.TenantID) error {
	for r := range roleSet {
		if !roles.Known(r) {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+string(r))
		}
	}
	hasSystem := roleSet.HasSystemTier()
	hasTenant := roleSet.HasTenantTier()
	if hasSystem && hasTenant {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity cannot hold system-tier and tenant-tier roles together")
	}
	if hasSystem && tenantID != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "system-tier identity cannot belong to a tenant")
	}
	if hasTenant && tenantID == nil && !roleSet.Has(roles.RoleTenantAdmin) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant-tier identity requires a tenant")
	}
	return nil
}

// Clone returns a deep copy so callers can hand identities across goroutines.
func (i *Identity) Clone() *Identity {
	out := *i
	out.Roles = i.Roles.Clone()
	if i.TenantID != nil {
		t := *i.TenantID
		out.TenantID = &t
	}
	return &out
}
