package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shepherd/internal/identity"
	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
)

type provisionUserRequest struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	TenantID    *string  `json:"tenant_id"`
}

type updateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type updateRolesRequest struct {
	Roles []string `json:"roles"`
}

type userResponse struct {
	SubjectID   string   `json:"subject_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	TenantID    *string  `json:"tenant_id,omitempty"`
	Version     int64    `json:"version"`
}

func toUserResponse(ident *identity.Identity) userResponse {
	resp := userResponse{
		SubjectID:   ident.SubjectID.String(),
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Roles:       ident.Roles.Strings(),
		Version:     ident.Version,
	}
	if ident.TenantID != nil {
		t := ident.TenantID.String()
		resp.TenantID = &t
	}
	return resp
}

func (h *Handler) handleProvisionUser(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req provisionUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	roleSet, err := parseRoles(req.Roles)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var tenantID *id.TenantID
	if req.TenantID != nil {
		parsed, err := id.ParseTenantID(*req.TenantID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		tenantID = &parsed
	}

	created, err := h.accounts.Provision(r.Context(), req.Email, req.DisplayName, roleSet, tenantID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), subjectID, req.Email, req.DisplayName, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *Handler) handleUpdateRoles(w http.ResponseWriter, r *http.Request) {
	actor, err := requireIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	roleSet, err := parseRoles(req.Roles)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	change, err := h.engine.ProposeRoleChange(r.Context(), subjectID, roleSet, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(change.Target))
}

func parseRoles(names []string) (roles.Set, error) {
	set := roles.NewSet()
	for _, name := range names {
		r := roles.RoleName(name)
		if !roles.Known(r) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+name)
		}
		set[r] = struct{}{}
	}
	return set, nil
}
