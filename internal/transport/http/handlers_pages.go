package httptransport

import (
	"net/http"

	"shepherd/pkg/platform/httputil"
)

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// areaPage answers the gate's redirects with a minimal JSON body naming the
// area. The real screens are served by the frontend; keeping these routable
// preserves the redirect idempotence the gate relies on.
func (h *Handler) areaPage(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"area": area,
			"path": r.URL.Path,
		})
	}
}
