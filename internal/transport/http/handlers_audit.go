package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"shepherd/internal/audit"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
)

type auditEventResponse struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	ActorSubjectID   string            `json:"actor_subject_id"`
	ActorDisplayName string            `json:"actor_display_name,omitempty"`
	TargetID         string            `json:"target_id"`
	TargetType       string            `json:"target_type"`
	Message          string            `json:"message"`
	Before           map[string]any    `json:"before,omitempty"`
	After            map[string]any    `json:"after,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// handleListAuditEvents serves the operator log viewer. Filters:
// type, from, to (RFC 3339), limit.
func (h *Handler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.auditLog.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "failed to list audit events"))
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:               e.ID.String(),
			Type:             string(e.Type),
			ActorSubjectID:   e.ActorSubjectID.String(),
			ActorDisplayName: e.ActorDisplayName,
			TargetID:         e.TargetID,
			TargetType:       string(e.TargetType),
			Message:          e.Message,
			Before:           e.Before,
			After:            e.After,
			Metadata:         e.Metadata,
			CreatedAt:        e.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{Type: audit.EventType(q.Get("type"))}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "invalid 'from' timestamp")
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "invalid 'to' timestamp")
		}
		filter.To = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "invalid 'limit'")
		}
		filter.Limit = n
	}
	return filter, nil
}
