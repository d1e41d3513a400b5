package scoring

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/phone"
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

const (
	callWindow = 30 * 24 * time.Hour

	confidenceTrustCap = 50
	confidenceCallsCap = 30

	advancedTrustCap    = 40
	advancedCallsCap    = 20
	advancedDurationCap = 10
	advancedMutualCap   = 20
	spamPenalty         = 30
)

// Confidence computes the basic confidence score a viewer has in a contact:
// mutual confirmed trust plus recent call volume, capped at 100. The message
// signal is reserved and currently contributes nothing.
func (s *Service) Confidence(ctx context.Context, contactID, viewerID id.PersonID) (float64, error) {
	if contactID.IsNil() || viewerID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "contact and viewer person ids are required")
	}

	mutual, err := s.mutualConfirmedTrust(ctx, viewerID, contactID)
	if err != nil {
		return 0, err
	}
	calls, _, err := s.callStats(ctx, viewerID, contactID, requestcontext.Now(ctx).Add(-callWindow))
	if err != nil {
		return 0, err
	}

	score := capped(float64(mutual)*10, confidenceTrustCap) +
		capped(float64(calls)*5, confidenceCallsCap)
	s.observe("confidence")
	return capped(score, 100), nil
}

// AdvancedConfidence extends the basic score with call duration, mutual
// friends, and a spam penalty. The four graph signals are gathered
// concurrently; a failure in any aborts the computation.
func (s *Service) AdvancedConfidence(ctx context.Context, contactID, viewerID id.PersonID) (float64, error) {
	if contactID.IsNil() || viewerID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "contact and viewer person ids are required")
	}
	since := requestcontext.Now(ctx).Add(-callWindow)

	var (
		mutual        int
		calls         int
		avgDuration   float64
		mutualFriends int
		spam          bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mutual, err = s.mutualConfirmedTrust(gctx, viewerID, contactID)
		return err
	})
	g.Go(func() error {
		var err error
		calls, avgDuration, err = s.callStats(gctx, viewerID, contactID, since)
		return err
	})
	g.Go(func() error {
		var err error
		mutualFriends, err = s.mutualFriendCount(gctx, viewerID, contactID)
		return err
	})
	g.Go(func() error {
		contact, err := s.store.GetPerson(gctx, contactID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact person not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "contact lookup failed")
		}
		digits := phone.Digits(contact.PrimaryPhone())
		if digits == "" {
			return nil
		}
		spam, err = s.spam.IsSpamNumber(gctx, digits)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "spam check failed")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	score := capped(float64(mutual)*10, advancedTrustCap) +
		capped(float64(calls)*3, advancedCallsCap) +
		capped(avgDuration*2.5, advancedDurationCap) +
		capped(float64(mutualFriends)*5, advancedMutualCap)
	if spam {
		score -= spamPenalty
	}
	s.observe("advanced_confidence")
	return clamp(score, 0, 100), nil
}

// mutualConfirmedTrust counts confirmed trust edges between the pair, both
// directions. A fully mutual assertion counts twice.
func (s *Service) mutualConfirmedTrust(ctx context.Context, a, b id.PersonID) (int, error) {
	count := 0
	for _, pair := range [][2]id.PersonID{{a, b}, {b, a}} {
		edge, err := s.store.GetTrustEdge(ctx, pair[0], pair[1])
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "trust edge lookup failed")
		}
		if edge.Confirmed {
			count++
		}
	}
	return count, nil
}

// mutualFriendCount is the size of the intersection of the two persons'
// outgoing confirmed-trust target sets.
func (s *Service) mutualFriendCount(ctx context.Context, a, b id.PersonID) (int, error) {
	aTargets, err := s.confirmedTargets(ctx, a)
	if err != nil {
		return 0, err
	}
	bTargets, err := s.confirmedTargets(ctx, b)
	if err != nil {
		return 0, err
	}
	count := 0
	for target := range aTargets {
		if _, ok := bTargets[target]; ok {
			count++
		}
	}
	return count, nil
}

func (s *Service) confirmedTargets(ctx context.Context, from id.PersonID) (map[id.PersonID]struct{}, error) {
	edges, err := s.store.ListTrustEdgesFrom(ctx, from)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "trust edge listing failed")
	}
	targets := make(map[id.PersonID]struct{}, len(edges))
	for _, edge := range edges {
		if edge.Confirmed {
			targets[edge.To] = struct{}{}
		}
	}
	return targets, nil
}

// callStats returns the call count and average call duration in minutes for
// interactions between the pair since the given time. Messages are excluded.
func (s *Service) callStats(ctx context.Context, a, b id.PersonID, since time.Time) (int, float64, error) {
	logs, err := s.store.ListCallLogsBetween(ctx, a, b, since)
	if err != nil {
		return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "call log listing failed")
	}
	count := 0
	var total time.Duration
	for _, log := range logs {
		if log.Kind != models.InteractionCall {
			continue
		}
		count++
		total += log.Duration
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, total.Minutes() / float64(count), nil
}
