package httptransport

import (
	"net/http"

	id "ripple/pkg/domain"
	"ripple/pkg/platform/httputil"
)

func (h *Handler) handleFindDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.services.Duplicates.FindDuplicateGroups(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

type mergeRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) handleMergeDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[mergeRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	personIDs := make([]id.PersonID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		personID, err := id.ParsePersonID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		personIDs = append(personIDs, personID)
	}
	master, err := h.services.Duplicates.MergeDuplicateGroup(ctx, personIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, master)
}
