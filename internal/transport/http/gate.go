package httptransport

import (
	"context"
	"net/http"
	"strings"

	"shepherd/internal/identity"
	"shepherd/internal/platform/metrics"
	"shepherd/internal/routing"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
)

// sessionCookie is the cookie carrying the session token for browser traffic.
// API clients send the same token as a bearer credential instead.
const sessionCookie = "shepherd_session"

// adminAPIPrefix is the operator back-channel. It is guarded by the admin
// token middleware instead of a session, so the gate leaves it alone.
const adminAPIPrefix = "/admin/api"

type identityKey struct{}

// IdentityFromContext returns the resolved caller, or nil for anonymous
// requests on public paths.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if ident, ok := ctx.Value(identityKey{}).(*identity.Identity); ok {
		return ident
	}
	return nil
}

// Gate authenticates the request and consults the access router. Allowed
// requests proceed with the resolved identity in context; everything else is
// answered with a 302 to the caller's home area. Public paths skip
// resolution entirely.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == adminAPIPrefix || strings.HasPrefix(path, adminAPIPrefix+"/") {
			next.ServeHTTP(w, r)
			return
		}
		if routing.IsPublic(path) {
			metrics.RouteDecisions.WithLabelValues("allow").Inc()
			next.ServeHTTP(w, r)
			return
		}

		var ident *identity.Identity
		if credential := extractCredential(r); credential != "" {
			resolved, err := h.resolver.Resolve(r.Context(), credential)
			switch {
			case err == nil:
				ident = resolved
			case dErrors.HasCode(err, dErrors.CodeStoreUnavailable):
				// Fail closed without leaking the infrastructure fault.
				h.logger.ErrorContext(r.Context(), "identity resolution unavailable", "error", err)
			case dErrors.HasCode(err, dErrors.CodeProfileNotFound):
				h.logger.WarnContext(r.Context(), "credential without profile", "error", err)
			default:
				// Invalid or expired credential: treat as anonymous.
			}
		}

		// The management API is a data plane: JSON clients get status codes,
		// not redirects. Authorization happens in the services behind it.
		if strings.HasPrefix(path, "/api/") {
			if ident == nil {
				metrics.RouteDecisions.WithLabelValues("unauthenticated").Inc()
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
				return
			}
			// Probe with the member area path: the only rule that can block
			// here is the disabled-tenant trap, which applies to API calls too.
			decision := h.router.Route(r.Context(), ident, routing.PathMembers)
			if !decision.Allowed() && decision.Target() == routing.PathDisabled {
				metrics.RouteDecisions.WithLabelValues("disabled").Inc()
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "congregation is disabled"))
				return
			}
			metrics.RouteDecisions.WithLabelValues("allow").Inc()
			ctx := context.WithValue(r.Context(), identityKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		decision := h.router.Route(r.Context(), ident, path)
		if !decision.Allowed() {
			metrics.RouteDecisions.WithLabelValues("redirect").Inc()
			http.Redirect(w, r, decision.Target(), http.StatusFound)
			return
		}
		metrics.RouteDecisions.WithLabelValues("allow").Inc()

		ctx := r.Context()
		if ident != nil {
			ctx = context.WithValue(ctx, identityKey{}, ident)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireIdentity is used by API handlers that sit behind the gate but still
// need a non-nil caller.
func requireIdentity(r *http.Request) (*identity.Identity, error) {
	ident := IdentityFromContext(r.Context())
	if ident == nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}
	return ident, nil
}

// extractCredential pulls the session token from the Authorization header or
// the session cookie, preferring the header.
func extractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
