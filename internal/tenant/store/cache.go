package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"shepherd/internal/tenant"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

const statusKeyPrefix = "shepherd:tenant-status:"

// notFoundMarker caches the absence of a tenant so a dangling reference does
// not hammer the database on every request.
const notFoundMarker = "!"

// CachedStatus decorates a tenant status source with a short-TTL Redis cache.
// The status is read on every authenticated request, so even a few seconds of
// caching removes nearly all the load; a short TTL keeps the disable boundary
// tight.
type CachedStatus struct {
	inner  tenant.StatusProvider
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStatus wraps inner with a Redis cache using the given TTL.
func NewCachedStatus(inner tenant.StatusProvider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStatus {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStatus{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Status returns the cached lifecycle status, falling back to the inner source.
func (c *CachedStatus) Status(ctx context.Context, tenantID id.TenantID) (tenant.Status, error) {
	key := statusKeyPrefix + tenantID.String()
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if cached == notFoundMarker {
			return "", sentinel.ErrNotFound
		}
		return tenant.Status(cached), nil
	}

	status, err := c.inner.Status(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			c.set(ctx, key, notFoundMarker)
			return "", sentinel.ErrNotFound
		}
		return "", err
	}

	c.set(ctx, key, string(status))
	return status, nil
}

// Invalidate drops the cached status after a tenant mutation.
func (c *CachedStatus) Invalidate(ctx context.Context, tenantID id.TenantID) {
	if err := c.client.Del(ctx, statusKeyPrefix+tenantID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "tenant status cache invalidation failed",
			"tenant_id", tenantID.String(),
			"error", err,
		)
	}
}

func (c *CachedStatus) set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "tenant status cache write failed",
			"key", key,
			"error", err,
		)
	}
}
