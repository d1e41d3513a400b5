package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/httputil"
	"ripple/pkg/requestcontext"
)

type proposeUpdateRequest struct {
	PersonID string `json:"personId"`
	Field    string `json:"field"`
	NewValue string `json:"newValue"`
	Stealth  bool   `json:"stealth"`
}

func (h *Handler) handleProposeUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[proposeUpdateRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	personID, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.services.Propagation.ProposeFieldUpdate(ctx,
		requestcontext.UserID(ctx), personID, req.Field, req.NewValue, req.Stealth)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if event == nil {
		// Registered subject: the change applied directly, no event created.
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleListPendingEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, err := id.ParsePersonID(r.URL.Query().Get("person"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.services.Propagation.ListPendingEvents(ctx, requestcontext.UserID(ctx), personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

type applyEventRequest struct {
	Ignore bool `json:"ignore"`
}

func (h *Handler) handleApplyEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[applyEventRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	approver := requestcontext.UserID(ctx)
	if approver.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	event, err := h.services.Propagation.ApplyUpdateEvent(ctx, eventID, approver, req.Ignore)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}
