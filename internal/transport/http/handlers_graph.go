package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/httputil"
	"ripple/pkg/requestcontext"
)

type resolvePersonRequest struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
}

func (h *Handler) handleResolvePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[resolvePersonRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	person, err := h.services.Identity.FindOrCreatePerson(ctx, req.Phone, req.Email, req.CountryCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

type pathResponse struct {
	Path  []id.PersonID `json:"path"`
	Level int           `json:"level"`
	Via   *id.PersonID  `json:"viaPersonId,omitempty"`
	Hops  []pathHop     `json:"hops"`
}

type pathHop struct {
	PersonID id.PersonID `json:"personId"`
	Name     string      `json:"name"`
}

func (h *Handler) handleFindPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, err := id.ParsePersonID(r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := id.ParsePersonID(r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	maxDepth := 0
	if raw := r.URL.Query().Get("maxDepth"); raw != "" {
		maxDepth, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "maxDepth must be an integer"))
			return
		}
	}

	path, err := h.services.Paths.FindConnectionPath(ctx, from, to, maxDepth)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if path == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no connection path within depth"))
		return
	}
	hops, err := h.services.Paths.Describe(ctx, requestcontext.UserID(ctx), path)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := pathResponse{Path: path.Path, Level: path.Level, Via: path.Via}
	for _, hop := range hops {
		resp.Hops = append(resp.Hops, pathHop{PersonID: hop.PersonID, Name: hop.Name})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type trustEdgeRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Level     int    `json:"level"`
	Confirmed bool   `json:"confirmed"`
}

func (h *Handler) handleUpsertTrustEdge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[trustEdgeRequest](w, r, h.logger, ctx)
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
	edge, err := h.services.Interactions.AssertTrust(ctx, from, to, req.Level, req.Confirmed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, edge)
}

type interactionRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Kind            string `json:"kind"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (h *Handler) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[interactionRequest](w, r, h.logger, ctx)
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
	edge, err := h.services.Interactions.RecordInteraction(ctx, from, to,
		models.InteractionKind(req.Kind), time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, edge)
}
