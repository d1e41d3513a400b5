package httptransport

import (
	"net/http"

	"ripple/internal/scoring"
	id "ripple/pkg/domain"
	"ripple/pkg/platform/httputil"
)

type scoreResponse struct {
	Score float64 `json:"score"`
}

// pairScore factors the shared shape of the pairwise score endpoints.
func (h *Handler) pairScore(w http.ResponseWriter, r *http.Request, aParam, bParam string,
	compute func(a, b id.PersonID) (float64, error)) {
	a, err := id.ParsePersonID(r.URL.Query().Get(aParam))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := id.ParsePersonID(r.URL.Query().Get(bParam))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := compute(a, b)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scoreResponse{Score: score})
}

func (h *Handler) handleConfidence(w http.ResponseWriter, r *http.Request) {
	h.pairScore(w, r, "person", "viewer", func(person, viewer id.PersonID) (float64, error) {
		return h.services.Scoring.Confidence(r.Context(), person, viewer)
	})
}

func (h *Handler) handleAdvancedConfidence(w http.ResponseWriter, r *http.Request) {
	h.pairScore(w, r, "person", "viewer", func(person, viewer id.PersonID) (float64, error) {
		return h.services.Scoring.AdvancedConfidence(r.Context(), person, viewer)
	})
}

func (h *Handler) handleInteractionTrust(w http.ResponseWriter, r *http.Request) {
	h.pairScore(w, r, "person", "viewer", func(person, viewer id.PersonID) (float64, error) {
		return h.services.Scoring.InteractionTrust(r.Context(), person, viewer)
	})
}

func (h *Handler) handlePropagationScore(w http.ResponseWriter, r *http.Request) {
	h.pairScore(w, r, "from", "to", func(from, to id.PersonID) (float64, error) {
		return h.services.Scoring.PropagationScore(r.Context(), from, to)
	})
}

func (h *Handler) handlePageRank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, ok := httputil.DecodeJSON[scoring.PageRankParams](w, r, h.logger, ctx)
	if !ok {
		return
	}
	ranks, err := h.services.Scoring.ComputePageRank(ctx, params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string]float64, len(ranks))
	for personID, rank := range ranks {
		out[personID.String()] = rank
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, ok := httputil.DecodeJSON[scoring.PredictionParams](w, r, h.logger, ctx)
	if !ok {
		return
	}
	predictions, err := h.services.Scoring.PredictMissingTrustEdges(ctx, params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, predictions)
}
