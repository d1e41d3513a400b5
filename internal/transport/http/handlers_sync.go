package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	"ripple/pkg/platform/httputil"
)

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	contacts, ok := httputil.DecodeJSON[[]models.SyncContact](w, r, h.logger, ctx)
	if !ok {
		return
	}
	deltas, err := h.services.SyncDelta.ComputeSyncDeltas(ctx, userID, contacts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deltas)
}
