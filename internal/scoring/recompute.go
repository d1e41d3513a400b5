package scoring

import (
	"context"
	"errors"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

// RefreshTrustScore recomputes the person's cached trust score as the average
// interaction trust over their first-level contacts, stamps the computation
// time, and persists it.
func (s *Service) RefreshTrustScore(ctx context.Context, personID id.PersonID) error {
	person, err := s.store.GetPerson(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
	}

	edges, err := s.store.ListContactEdgesFrom(ctx, personID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "contact edge listing failed")
	}

	score := 0.0
	if len(edges) > 0 {
		total := 0.0
		for _, edge := range edges {
			trust, err := s.InteractionTrust(ctx, personID, edge.To)
			if err != nil {
				return err
			}
			total += trust
		}
		score = total / float64(len(edges))
	}

	person.TrustScore = score
	person.TrustScoreAt = requestcontext.Now(ctx)
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "trust score persist failed")
	}
	return nil
}

// RefreshTrustScoreAsync triggers a background refresh. It never blocks or
// fails the caller: the work runs on a context detached from the request, and
// errors are logged and swallowed, leaving the previous cached score in place.
func (s *Service) RefreshTrustScoreAsync(ctx context.Context, personID id.PersonID) {
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.RefreshTrustScore(detached, personID); err != nil {
			s.logger.Warn("trust score refresh failed",
				"personId", personID.String(), "error", err)
			if s.metrics != nil {
				s.metrics.IncRefreshFailure()
			}
		}
	}()
}
