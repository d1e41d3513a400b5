// Package interactions records raw call and message events and keeps the
// contact graph warm as a side effect.
package interactions

import (
	"context"
	"log/slog"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/requestcontext"
)

// Store is the slice of the graph store interaction recording needs.
type Store interface {
	AppendCallLog(ctx context.Context, log *models.CallLog) error
	UpsertContactEdge(ctx context.Context, from, to id.PersonID, at time.Time) (*models.ContactEdge, error)
	UpsertTrustEdge(ctx context.Context, edge *models.TrustEdge) (*models.TrustEdge, error)
}

// TrustRefresher triggers the background trust-score recomputation. The
// refresh must never block or fail the recording request.
type TrustRefresher interface {
	RefreshTrustScoreAsync(ctx context.Context, personID id.PersonID)
}

// Service records interactions.
type Service struct {
	store     Store
	refresher TrustRefresher
	logger    *slog.Logger
}

func New(store Store, refresher TrustRefresher, logger *slog.Logger) *Service {
	return &Service{store: store, refresher: refresher, logger: logger}
}

// RecordInteraction appends a call log entry, bumps the directed contact edge,
// and kicks off a trust-score refresh for both ends. The refresh is
// fire-and-forget: the recording succeeds even when the derived score update
// later fails.
func (s *Service) RecordInteraction(ctx context.Context, from, to id.PersonID, kind models.InteractionKind, duration time.Duration) (*models.ContactEdge, error) {
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "from and to person ids are required")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeValidation, "an interaction needs two distinct persons")
	}
	switch kind {
	case models.InteractionCall, models.InteractionMessage:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown interaction kind %q", kind)
	}
	if kind == models.InteractionMessage {
		duration = 0
	}

	now := requestcontext.Now(ctx)
	if err := s.store.AppendCallLog(ctx, &models.CallLog{
		From: from, To: to, Kind: kind, Duration: duration, At: now,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "call log append failed")
	}
	edge, err := s.store.UpsertContactEdge(ctx, from, to, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "edge upsert failed")
	}

	s.refresher.RefreshTrustScoreAsync(ctx, from)
	s.refresher.RefreshTrustScoreAsync(ctx, to)
	return edge, nil
}

// AssertTrust records an explicit trust assertion. The upsert is idempotent;
// like interaction writes, it triggers a background score refresh for both
// ends.
func (s *Service) AssertTrust(ctx context.Context, from, to id.PersonID, level int, confirmed bool) (*models.TrustEdge, error) {
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "from and to person ids are required")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeValidation, "a trust edge needs two distinct persons")
	}
	edge, err := s.store.UpsertTrustEdge(ctx, &models.TrustEdge{
		From: from, To: to, Confirmed: confirmed, Level: level,
		CreatedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "trust edge upsert failed")
	}

	s.refresher.RefreshTrustScoreAsync(ctx, from)
	s.refresher.RefreshTrustScoreAsync(ctx, to)
	return edge, nil
}
