// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services; authorization itself lives in the routing and policy packages.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shepherd/internal/account"
	"shepherd/internal/audit"
	"shepherd/internal/identity"
	"shepherd/internal/platform/middleware"
	"shepherd/internal/policy"
	"shepherd/internal/routing"
	"shepherd/internal/tenant"
)

// AuditLister exposes the read side of the audit trail to the log viewer.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// Handler holds the domain services the HTTP layer delegates to.
type Handler struct {
	resolver *identity.Resolver
	router   *routing.Router
	engine   *policy.Engine
	accounts *account.Service
	tenants  *tenant.Service
	auditLog AuditLister
	logger   *slog.Logger
}

func NewHandler(
	resolver *identity.Resolver,
	router *routing.Router,
	engine *policy.Engine,
	accounts *account.Service,
	tenants *tenant.Service,
	auditLog AuditLister,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		resolver: resolver,
		router:   router,
		engine:   engine,
		accounts: accounts,
		tenants:  tenants,
		auditLog: auditLog,
		logger:   logger,
	}
}

// NewRouter wires all endpoints with the middleware stack. adminToken guards
// the operator-only audit listing; an empty token disables that surface.
func NewRouter(h *Handler, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Metadata(nil))
	r.Use(h.Gate)

	// Public surface.
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/login", h.areaPage("login"))
	r.Get("/signup", h.areaPage("signup"))

	// Area landing pages. The real screens are rendered elsewhere; these
	// answer the redirects the gate issues.
	r.Get("/disabled", h.areaPage("disabled"))
	r.Get("/admin", h.areaPage("system admin"))
	r.Get("/admin/*", h.areaPage("system admin"))
	r.Get("/onboarding", h.areaPage("onboarding"))
	r.Get("/onboarding/*", h.areaPage("onboarding"))
	r.Get("/members", h.areaPage("members"))
	r.Get("/members/*", h.areaPage("members"))

	// User management.
	r.Post("/api/users", h.handleProvisionUser)
	r.Patch("/api/users/{subjectID}", h.handleUpdateUser)
	r.Put("/api/users/{subjectID}/roles", h.handleUpdateRoles)

	// Tenant administration.
	r.Post("/api/tenants", h.handleCreateTenant)
	r.Post("/api/tenants/{tenantID}/disable", h.handleDisableTenant)
	r.Post("/api/tenants/{tenantID}/reactivate", h.handleReactivateTenant)

	// Operator-only audit log viewer.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(adminToken, logger))
		r.Get("/admin/api/audit/events", h.handleListAuditEvents)
	})

	return r
}
