// Package routing decides where an authenticated (or anonymous) request may
// go. The rule table is pure and total: every (identity, tenant state, path)
// combination produces exactly one decision, and every redirect target is
// itself allowed on re-evaluation, so the client can never be bounced in a
// loop.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"shepherd/internal/identity"
	"shepherd/internal/roles"
	"shepherd/internal/tenant"
	"shepherd/pkg/platform/sentinel"
)

// Area path prefixes. The gate middleware and the handlers share these.
const (
	PathLogin      = "/login"
	PathSignup     = "/signup"
	PathPublicAPI  = "/api/public"
	PathHealth     = "/healthz"
	PathMetrics    = "/metrics"
	PathStatic     = "/static"
	PathDisabled   = "/disabled"
	PathSystem     = "/admin"
	PathOnboarding = "/onboarding"
	PathCreate     = "/onboarding/create-tenant"
	PathTenantBase = "/admin/church/"
	PathMembers    = "/members"
)

// publicPrefixes bypass identity resolution entirely.
var publicPrefixes = []string{
	PathLogin,
	PathSignup,
	PathPublicAPI,
	PathHealth,
	PathMetrics,
	PathStatic,
}

// Decision is the outcome of evaluating a request path: either the request
// proceeds, or the client is redirected to its home area.
type Decision struct {
	allowed bool
	target  string
}

// Allow lets the request through.
func Allow() Decision {
	return Decision{allowed: true}
}

// RedirectTo sends the client to path.
func RedirectTo(path string) Decision {
	return Decision{target: path}
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.allowed
}

// Target returns the redirect path; empty when the request is allowed.
func (d Decision) Target() string {
	return d.target
}

// IsPublic reports whether path bypasses authentication.
func IsPublic(path string) bool {
	for _, prefix := range publicPrefixes {
		if under(path, prefix) {
			return true
		}
	}
	return false
}

// Evaluate applies the rule table. First match wins; rules are ordered from
// most to least restrictive so a disabled tenant always traps its members
// before any role-based rule can run.
func Evaluate(ident *identity.Identity, tenantDisabled bool, path string) Decision {
	if IsPublic(path) {
		return Allow()
	}
	if ident == nil {
		return RedirectTo(PathLogin)
	}
	if tenantDisabled {
		if under(path, PathDisabled) {
			return Allow()
		}
		return RedirectTo(PathDisabled)
	}
	if ident.Roles.HasSystemTier() {
		if under(path, PathSystem) {
			return Allow()
		}
		return RedirectTo(PathSystem)
	}
	if ident.Roles.Has(roles.RoleTenantAdmin) {
		if ident.TenantID == nil {
			if under(path, PathOnboarding) {
				return Allow()
			}
			return RedirectTo(PathCreate)
		}
		home := PathTenantBase + ident.TenantID.String()
		if under(path, home) {
			return Allow()
		}
		return RedirectTo(home)
	}
	if ident.Roles.HasTenantTier() || len(ident.Roles) == 0 {
		if under(path, PathMembers) {
			return Allow()
		}
		return RedirectTo(PathMembers)
	}
	return RedirectTo(PathLogin)
}

// under reports whether path equals prefix or sits beneath it as a path
// segment. "/administrator" is not under "/admin".
func under(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// Router pairs the pure rule table with the single piece of I/O it needs:
// the tenant lifecycle status of the caller's congregation.
type Router struct {
	status tenant.StatusProvider
	logger *slog.Logger
}

// New constructs a Router backed by the given status source.
func New(status tenant.StatusProvider, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{status: status, logger: logger}
}

// Route resolves the caller's tenant status and evaluates the rule table.
// It never returns an error: a missing tenant row is treated as disabled,
// and a transient status failure fails closed to the login page.
func (r *Router) Route(ctx context.Context, ident *identity.Identity, path string) Decision {
	disabled := false
	if ident != nil && ident.TenantID != nil && !IsPublic(path) {
		status, err := r.status.Status(ctx, *ident.TenantID)
		switch {
		case err == nil:
			disabled = status == tenant.StatusDisabled
		case errors.Is(err, sentinel.ErrNotFound):
			// A dangling tenant reference gets the disabled notice, not an
			// error page. The congregation record is gone either way.
			r.logger.WarnContext(ctx, "identity references missing tenant",
				"subject_id", ident.SubjectID.String(),
				"tenant_id", ident.TenantID.String(),
			)
			disabled = true
		default:
			r.logger.ErrorContext(ctx, "tenant status lookup failed",
				"tenant_id", ident.TenantID.String(),
				"error", err,
			)
			return RedirectTo(PathLogin)
		}
	}
	return Evaluate(ident, disabled, path)
}
