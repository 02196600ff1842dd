package store

import (
	"context"
	"strings"
	"sync"

	"shepherd/internal/tenant"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

// InMemory stores tenants in memory for dev environments and tests.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant
	nameIdx map[string]string
}

// NewInMemory creates an in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[string]*tenant.Tenant),
		nameIdx: make(map[string]string),
	}
}

// CreateIfNameAvailable atomically creates the tenant if the name is not already taken (case-insensitive).
func (s *InMemory) CreateIfNameAvailable(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(t.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return sentinel.ErrAlreadyExists
	}
	key := t.ID.String()
	copied := *t
	s.tenants[key] = &copied
	s.nameIdx[lower] = key
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID.String()]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// Update persists status changes for an existing tenant.
func (s *InMemory) Update(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID.String()]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *t
	s.tenants[t.ID.String()] = &copied
	return nil
}

// Status returns the lifecycle status for a tenant.
func (s *InMemory) Status(ctx context.Context, tenantID id.TenantID) (tenant.Status, error) {
	t, err := s.FindByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}
