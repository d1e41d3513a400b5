package scoring

import (
	"context"
	"math"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/requestcontext"
)

const (
	interactionWindow = 90 * 24 * time.Hour
	interactionWeeks  = 90.0 / 7.0

	callFrequencyCap    = 30
	callDurationCap     = 25
	messageFrequencyCap = 20
	consistencyCap      = 10
)

// InteractionTrust scores the interaction pattern between two persons over the
// last 90 days: call frequency, call duration, message frequency, recency, and
// week-over-week consistency, each component capped, the total rounded and
// clamped to [0,100].
func (s *Service) InteractionTrust(ctx context.Context, a, b id.PersonID) (float64, error) {
	if a.IsNil() || b.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "both person ids are required")
	}
	now := requestcontext.Now(ctx)
	logs, err := s.store.ListCallLogsBetween(ctx, a, b, now.Add(-interactionWindow))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "call log listing failed")
	}

	var (
		calls         int
		messages      int
		callTotal     time.Duration
		mostRecent    time.Time
		weeksWithAny  = map[isoWeek]struct{}{}
	)
	for _, log := range logs {
		switch log.Kind {
		case models.InteractionCall:
			calls++
			callTotal += log.Duration
		case models.InteractionMessage:
			messages++
		}
		if log.At.After(mostRecent) {
			mostRecent = log.At
		}
		year, week := log.At.ISOWeek()
		weeksWithAny[isoWeek{year, week}] = struct{}{}
	}

	callsPerWeek := float64(calls) / interactionWeeks
	messagesPerWeek := float64(messages) / interactionWeeks
	avgMinutes := 0.0
	if calls > 0 {
		avgMinutes = callTotal.Minutes() / float64(calls)
	}

	score := capped(callsPerWeek*10, callFrequencyCap) +
		capped(avgMinutes*2.5, callDurationCap) +
		capped(messagesPerWeek*7, messageFrequencyCap) +
		recencyBonus(now, mostRecent) +
		capped(float64(len(weeksWithAny))*2, consistencyCap)

	s.observe("interaction_trust")
	return clamp(math.Round(score), 0, 100), nil
}

type isoWeek struct {
	year int
	week int
}

// recencyBonus rewards fresh contact: 15 within a week, 10 within a month,
// 5 within two months.
func recencyBonus(now, mostRecent time.Time) float64 {
	if mostRecent.IsZero() {
		return 0
	}
	age := now.Sub(mostRecent)
	switch {
	case age <= 7*24*time.Hour:
		return 15
	case age <= 30*24*time.Hour:
		return 10
	case age <= 60*24*time.Hour:
		return 5
	default:
		return 0
	}
}
