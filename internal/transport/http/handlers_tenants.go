package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shepherd/internal/identity"
	"shepherd/internal/tenant"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
)

type createTenantRequest struct {
	Name string `json:"name"`
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenantResponse(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.tenants.Create(r.Context(), req.Name, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTenantResponse(created))
}

func (h *Handler) handleDisableTenant(w http.ResponseWriter, r *http.Request) {
	h.handleTenantTransition(w, r, h.tenants.Disable)
}

func (h *Handler) handleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.handleTenantTransition(w, r, h.tenants.Reactivate)
}

func (h *Handler) handleTenantTransition(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, tenantID id.TenantID, actor *identity.Identity) (*tenant.Tenant, error),
) {
	actor, err := requireIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := transition(r.Context(), tenantID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(updated))
}
