// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and render; business logic stays out of this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ripple/internal/connections"
	"ripple/internal/duplicates"
	"ripple/internal/identity"
	"ripple/internal/interactions"
	"ripple/internal/paths"
	"ripple/internal/platform/metrics"
	"ripple/internal/platform/middleware"
	"ripple/internal/propagation"
	"ripple/internal/scoring"
	"ripple/internal/syncdelta"
)

// Services bundles the domain services the transport exposes.
type Services struct {
	Identity     *identity.Service
	Paths        *paths.Service
	Scoring      *scoring.Service
	Duplicates   *duplicates.Service
	Connections  *connections.Service
	Propagation  *propagation.Service
	SyncDelta    *syncdelta.Service
	Interactions *interactions.Service
}

// Handler wires endpoints to the domain services.
type Handler struct {
	services Services
	logger   *slog.Logger
}

func NewHandler(services Services, logger *slog.Logger) *Handler {
	return &Handler{services: services, logger: logger}
}

// NewRouter mounts every endpoint behind the shared middleware stack.
// /healthz and /metrics stay outside auth.
func NewRouter(h *Handler, validator middleware.JWTValidator, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))

		r.Post("/persons/resolve", h.handleResolvePerson)
		r.Get("/paths", h.handleFindPath)
		r.Put("/trust-edges", h.handleUpsertTrustEdge)

		r.Get("/scores/confidence", h.handleConfidence)
		r.Get("/scores/advanced", h.handleAdvancedConfidence)
		r.Get("/scores/interaction", h.handleInteractionTrust)
		r.Get("/scores/propagation", h.handlePropagationScore)
		r.Post("/scores/pagerank", h.handlePageRank)
		r.Post("/scores/predict", h.handlePredict)

		r.Get("/duplicates", h.handleFindDuplicates)
		r.Post("/duplicates/merge", h.handleMergeDuplicates)

		r.Post("/connection-requests", h.handleCreateRequest)
		r.Post("/connection-requests/{requestID}/approve", h.handleApproveRequest)
		r.Post("/connection-requests/{requestID}/reject", h.handleRejectRequest)
		r.Post("/blocks", h.handleBlock)
		r.Delete("/blocks", h.handleUnblock)

		r.Post("/update-events", h.handleProposeUpdate)
		r.Get("/update-events", h.handleListPendingEvents)
		r.Post("/update-events/{eventID}/apply", h.handleApplyEvent)

		r.Post("/sync/{userID}", h.handleSync)
		r.Post("/interactions", h.handleRecordInteraction)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
