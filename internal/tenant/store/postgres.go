package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"shepherd/internal/tenant"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

// Postgres persists tenants in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// CreateIfNameAvailable atomically creates the tenant if the name is not already taken (case-insensitive).
func (s *Postgres) CreateIfNameAvailable(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.Name,
		string(t.Status),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	var (
		t        tenant.Tenant
		tid      uuid.UUID
		statusStr string
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID)).Scan(
		&tid, &t.Name, &statusStr, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by id: %w: %w", sentinel.ErrUnavailable, err)
	}
	t.ID = id.TenantID(tid)
	t.Status = tenant.Status(statusStr)
	return &t, nil
}

// Update persists status changes for an existing tenant.
func (s *Postgres) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.Name,
		string(t.Status),
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Status returns the lifecycle status for a tenant.
func (s *Postgres) Status(ctx context.Context, tenantID id.TenantID) (tenant.Status, error) {
	var statusStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1`, uuid.UUID(tenantID)).Scan(&statusStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("tenant status: %w: %w", sentinel.ErrUnavailable, err)
	}
	return tenant.Status(statusStr), nil
}
