package tenant

import (
	"time"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// Status is the tenant lifecycle state. Transitions: active ↔ disabled only.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Tenant is one congregation. Disabling a tenant is an immediate security
// boundary: every identity belonging to it is denied access by the access
// router regardless of role, without touching the member records themselves.
// Reactivation therefore needs no cascade either.
type Tenant struct {
	ID        id.TenantID
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Disable transitions the tenant to disabled status.
func (t *Tenant) Disable(now time.Time) error {
	if t.Status == StatusDisabled {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already disabled")
	}
	t.Status = StatusDisabled
	t.UpdatedAt = now
	return nil
}

// Reactivate transitions the tenant back to active status.
func (t *Tenant) Reactivate(now time.Time) error {
	if t.Status == StatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	t.Status = StatusActive
	t.UpdatedAt = now
	return nil
}

// New constructs an active tenant.
func New(tenantID id.TenantID, name string, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
