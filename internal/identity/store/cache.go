package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"shepherd/internal/identity"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
)

const cacheKeyPrefix = "shepherd:identity:"

// Cached decorates an identity store with a Redis read-through cache. Writes
// invalidate the cached entry so a role change is visible on the next request.
// Cache faults are never fatal: a Redis outage degrades to the inner store.
type Cached struct {
	inner  identity.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps inner with a Redis cache using the given TTL.
func NewCached(inner identity.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) Save(ctx context.Context, ident *identity.Identity) error {
	if err := c.inner.Save(ctx, ident); err != nil {
		return err
	}
	c.invalidate(ctx, ident.SubjectID)
	return nil
}

func (c *Cached) FindBySubject(ctx context.Context, subjectID id.SubjectID) (*identity.Identity, error) {
	key := cacheKeyPrefix + subjectID.String()
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedIdentity
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.toIdentity(), nil
		}
	}

	ident, err := c.inner.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(fromIdentity(ident)); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "identity cache write failed",
				"subject_id", subjectID.String(),
				"error", err,
			)
		}
	}
	return ident, nil
}

func (c *Cached) UpdateRoles(ctx context.Context, ident *identity.Identity, expectedVersion int64) error {
	if err := c.inner.UpdateRoles(ctx, ident, expectedVersion); err != nil {
		return err
	}
	c.invalidate(ctx, ident.SubjectID)
	return nil
}

func (c *Cached) Update(ctx context.Context, ident *identity.Identity, expectedVersion int64) error {
	if err := c.inner.Update(ctx, ident, expectedVersion); err != nil {
		return err
	}
	c.invalidate(ctx, ident.SubjectID)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, subjectID id.SubjectID) {
	if err := c.client.Del(ctx, cacheKeyPrefix+subjectID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "identity cache invalidation failed",
			"subject_id", subjectID.String(),
			"error", err,
		)
	}
}

// cachedIdentity is the JSON cache representation. Kept separate from the
// domain model so the cache schema can evolve independently.
type cachedIdentity struct {
	SubjectID   string    `json:"subject_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Roles       []string  `json:"roles"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func fromIdentity(ident *identity.Identity) cachedIdentity {
	out := cachedIdentity{
		SubjectID:   ident.SubjectID.String(),
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Roles:       ident.Roles.Strings(),
		Version:     ident.Version,
		CreatedAt:   ident.CreatedAt,
		UpdatedAt:   ident.UpdatedAt,
	}
	if ident.TenantID != nil {
		out.TenantID = ident.TenantID.String()
	}
	return out
}

func (c cachedIdentity) toIdentity() *identity.Identity {
	subjectID, _ := id.ParseSubjectID(c.SubjectID)
	ident := &identity.Identity{
		SubjectID:   subjectID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	names := make([]string, len(c.Roles))
	copy(names, c.Roles)
	ident.Roles = rolesFromStrings(names)
	if c.TenantID != "" {
		if tenantID, err := id.ParseTenantID(c.TenantID); err == nil {
			ident.TenantID = &tenantID
		}
	}
	return ident
}

func rolesFromStrings(names []string) roles.Set {
	set := make(roles.Set, len(names))
	for _, n := range names {
		set[roles.RoleName(n)] = struct{}{}
	}
	return set
}
