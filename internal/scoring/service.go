// Package scoring computes the engine's trust and confidence signals.
//
// The five scorers are independent and non-reconciled: each is computed on
// demand from the graph store, and none is the single source of truth. The
// cached per-person trust score is a derived value refreshed in the background
// after interaction writes.
package scoring

import (
	"context"
	"log/slog"
	"time"

	"ripple/internal/graph/models"
	scoringmetrics "ripple/internal/scoring/metrics"
	id "ripple/pkg/domain"
)

// Store is the slice of the graph store the scoring engine reads, plus the
// person update needed to persist refreshed trust scores.
type Store interface {
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	ListPersons(ctx context.Context) ([]*models.Person, error)
	GetTrustEdge(ctx context.Context, from, to id.PersonID) (*models.TrustEdge, error)
	ListTrustEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.TrustEdge, error)
	ListConfirmedTrustEdges(ctx context.Context) ([]*models.TrustEdge, error)
	ListContactEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.ContactEdge, error)
	ListCallLogsBetween(ctx context.Context, a, b id.PersonID, since time.Time) ([]*models.CallLog, error)
}

// SpamChecker answers membership in the maintained spam-number set.
// Implementations must be cheap; the advanced score calls it per request.
type SpamChecker interface {
	IsSpamNumber(ctx context.Context, digits string) (bool, error)
}

// noSpam is the fallback when no spam set is configured.
type noSpam struct{}

func (noSpam) IsSpamNumber(context.Context, string) (bool, error) { return false, nil }

// Service computes scores over the graph store.
type Service struct {
	store   Store
	spam    SpamChecker
	cache   *Cache
	logger  *slog.Logger
	metrics *scoringmetrics.Metrics
}

// Option configures optional collaborators.
type Option func(*Service)

// WithSpamChecker wires the spam-number set used by the advanced score.
func WithSpamChecker(spam SpamChecker) Option {
	return func(s *Service) { s.spam = spam }
}

// WithCache wires the batch-result cache for pagerank and prediction.
func WithCache(cache *Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics wires prometheus counters.
func WithMetrics(m *scoringmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, spam: noSpam{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) observe(scorer string) {
	if s.metrics != nil {
		s.metrics.IncScoresComputed(scorer)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}
