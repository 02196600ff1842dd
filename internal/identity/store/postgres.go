package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shepherd/internal/identity"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

// Postgres persists identities in PostgreSQL. Roles are stored as a sorted
// JSON array so stored state is order-independent by construction.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Save inserts a new identity record.
func (s *Postgres) Save(ctx context.Context, ident *identity.Identity) error {
	rolesJSON, err := json.Marshal(ident.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}
	query := `
		INSERT INTO identities (subject_id, email, display_name, roles, tenant_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(ident.SubjectID),
		ident.Email,
		ident.DisplayName,
		rolesJSON,
		tenantIDValue(ident.TenantID),
		ident.Version,
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// FindBySubject retrieves an identity by subject id.
func (s *Postgres) FindBySubject(ctx context.Context, subjectID id.SubjectID) (*identity.Identity, error) {
	query := `
		SELECT subject_id, email, display_name, roles, tenant_id, version, created_at, updated_at
		FROM identities
		WHERE subject_id = $1
	`
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, uuid.UUID(subjectID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", sentinelWrap(err))
	}
	return ident, nil
}

// UpdateRoles swaps the role set with an optimistic version check.
func (s *Postgres) UpdateRoles(ctx context.Context, ident *identity.Identity, expectedVersion int64) error {
	rolesJSON, err := json.Marshal(ident.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}
	query := `
		UPDATE identities
		SET roles = $2, version = version + 1, updated_at = $3
		WHERE subject_id = $1 AND version = $4
	`
	return s.guardedUpdate(ctx, ident, expectedVersion, query,
		uuid.UUID(ident.SubjectID), rolesJSON, ident.UpdatedAt, expectedVersion)
}

// Update replaces the mutable profile fields with an optimistic version check.
func (s *Postgres) Update(ctx context.Context, ident *identity.Identity, expectedVersion int64) error {
	query := `
		UPDATE identities
		SET email = $2, display_name = $3, tenant_id = $4, version = version + 1, updated_at = $5
		WHERE subject_id = $1 AND version = $6
	`
	return s.guardedUpdate(ctx, ident, expectedVersion, query,
		uuid.UUID(ident.SubjectID), ident.Email, ident.DisplayName,
		tenantIDValue(ident.TenantID), ident.UpdatedAt, expectedVersion)
}

// guardedUpdate runs a versioned UPDATE and distinguishes a missing row from a
// stale version so callers get the right sentinel.
func (s *Postgres) guardedUpdate(ctx context.Context, ident *identity.Identity, expectedVersion int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update identity: %w", sentinelWrap(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM identities WHERE subject_id = $1)`,
			uuid.UUID(ident.SubjectID)).Scan(&exists); err != nil {
			return fmt.Errorf("check identity existence: %w", sentinelWrap(err))
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	ident.Version = expectedVersion + 1
	return nil
}

func scanIdentity(row *sql.Row) (*identity.Identity, error) {
	var (
		ident     identity.Identity
		subjectID uuid.UUID
		rolesJSON []byte
		tenantID  *uuid.UUID
	)
	err := row.Scan(
		&subjectID,
		&ident.Email,
		&ident.DisplayName,
		&rolesJSON,
		&tenantID,
		&ident.Version,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ident.SubjectID = id.SubjectID(subjectID)
	var roleSet roles.Set
	if err := json.Unmarshal(rolesJSON, &roleSet); err != nil {
		return nil, fmt.Errorf("unmarshal roles: %w", err)
	}
	ident.Roles = roleSet
	if tenantID != nil {
		t := id.TenantID(*tenantID)
		ident.TenantID = &t
	}
	return &ident, nil
}

func tenantIDValue(tenantID *id.TenantID) any {
	if tenantID == nil {
		return nil
	}
	return uuid.UUID(*tenantID)
}

// sentinelWrap tags driver-level failures as transient so the retry policy at
// the resolver boundary knows they are worth another attempt.
func sentinelWrap(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
