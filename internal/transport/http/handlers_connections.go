package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/httputil"
	"ripple/pkg/requestcontext"
)

type createRequestBody struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[createRequestBody](w, r, h.logger, ctx)
	if !ok {
		return
	}
	from, err := id.ParsePersonID(req.From)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := id.ParsePersonID(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	created, err := h.services.Connections.CreateConnectionRequest(ctx, from, to, req.Message)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) resolveRequest(w http.ResponseWriter, r *http.Request, approve bool) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	approver := requestcontext.UserID(ctx)
	if approver.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	resolve := h.services.Connections.RejectConnectionRequest
	if approve {
		resolve = h.services.Connections.ApproveConnectionRequest
	}
	resolved, err := resolve(ctx, requestID, approver)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolved)
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, true)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, false)
}

type blockRequest struct {
	PersonID    string `json:"personId"`
	PhoneNumber string `json:"phoneNumber"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[blockRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	var personID *id.PersonID
	if req.PersonID != "" {
		parsed, err := id.ParsePersonID(req.PersonID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		personID = &parsed
	}
	if err := h.services.Connections.Block(ctx, requestcontext.UserID(ctx), personID, req.PhoneNumber, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID, err := id.ParsePersonID(r.URL.Query().Get("personId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.services.Connections.Unblock(ctx, requestcontext.UserID(ctx), personID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
