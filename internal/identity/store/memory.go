package store

import (
	"context"
	"sync"

	"shepherd/internal/identity"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

// InMemory stores identities in memory for dev environments and tests.
type InMemory struct {
	mu         sync.RWMutex
	identities map[string]*identity.Identity
}

// NewInMemory creates an in-memory identity store.
func NewInMemory() *InMemory {
	return &InMemory{identities: make(map[string]*identity.Identity)}
}

// Save inserts a new identity record.
func (s *InMemory) Save(_ context.Context, ident *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ident.SubjectID.String()
	if _, exists := s.identities[key]; exists {
		return sentinel.ErrAlreadyExists
	}
	s.identities[key] = ident.Clone()
	return nil
}

// FindBySubject retrieves an identity by subject id.
func (s *InMemory) FindBySubject(_ context.Context, subjectID id.SubjectID) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ident, ok := s.identities[subjectID.String()]; ok {
		return ident.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// UpdateRoles swaps the role set iff the stored version matches expectedVersion.
func (s *InMemory) UpdateRoles(_ context.Context, ident *identity.Identity, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.identities[ident.SubjectID.String()]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	stored.Roles = ident.Roles.Clone()
	stored.UpdatedAt = ident.UpdatedAt
	stored.Version = expectedVersion + 1
	ident.Version = stored.Version
	return nil
}

// Update replaces the mutable profile fields iff the stored version matches.
func (s *InMemory) Update(_ context.Context, ident *identity.Identity, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.identities[ident.SubjectID.String()]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	stored.Email = ident.Email
	stored.DisplayName = ident.DisplayName
	stored.TenantID = ident.TenantID
	stored.UpdatedAt = ident.UpdatedAt
	stored.Version = expectedVersion + 1
	ident.Version = stored.Version
	return nil
}
