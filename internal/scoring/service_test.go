package scoring

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ripple/internal/graph/models"
	"ripple/internal/graph/store"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/requestcontext"
)

type stubSpam struct {
	numbers map[string]bool
}

func (s stubSpam) IsSpamNumber(_ context.Context, digits string) (bool, error) {
	return s.numbers[digits], nil
}

type ScoringSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
	ctx     context.Context
	now     time.Time
	spam    stubSpam
}

func (s *ScoringSuite) SetupTest() {
	s.store = store.NewMemory()
	s.spam = stubSpam{numbers: map[string]bool{}}
	s.service = New(s.store, slog.New(slog.DiscardHandler), WithSpamChecker(s.spam))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestScoringSuite(t *testing.T) {
	suite.Run(t, new(ScoringSuite))
}

func (s *ScoringSuite) person() id.PersonID {
	p := &models.Person{ID: id.NewPersonID(), CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))
	return p.ID
}

func (s *ScoringSuite) trust(from, to id.PersonID, confirmed bool) {
	_, err := s.store.UpsertTrustEdge(s.ctx, &models.TrustEdge{
		From: from, To: to, Confirmed: confirmed, Level: 1, CreatedAt: s.now,
	})
	s.Require().NoError(err)
}

func (s *ScoringSuite) call(from, to id.PersonID, at time.Time, d time.Duration) {
	s.Require().NoError(s.store.AppendCallLog(s.ctx, &models.CallLog{
		From: from, To: to, Kind: models.InteractionCall, Duration: d, At: at,
	}))
}

func (s *ScoringSuite) message(from, to id.PersonID, at time.Time) {
	s.Require().NoError(s.store.AppendCallLog(s.ctx, &models.CallLog{
		From: from, To: to, Kind: models.InteractionMessage, At: at,
	}))
}

func (s *ScoringSuite) TestConfidenceRequiresIDs() {
	_, err := s.service.Confidence(s.ctx, id.PersonID{}, id.NewPersonID())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ScoringSuite) TestConfidenceMutualTrustBothDirections() {
	viewer, contact := s.person(), s.person()
	s.trust(viewer, contact, true)
	s.trust(contact, viewer, true)

	score, err := s.service.Confidence(s.ctx, contact, viewer)
	s.Require().NoError(err)
	s.Equal(20.0, score)
}

func (s *ScoringSuite) TestConfidenceCallVolumeCapped() {
	viewer, contact := s.person(), s.person()
	// 10 recent calls would contribute 50; the component caps at 30.
	for i := 0; i < 10; i++ {
		s.call(viewer, contact, s.now.Add(-time.Duration(i)*24*time.Hour), 2*time.Minute)
	}

	score, err := s.service.Confidence(s.ctx, contact, viewer)
	s.Require().NoError(err)
	s.Equal(30.0, score)
}

func (s *ScoringSuite) TestConfidenceIgnoresStaleCallsAndUnconfirmedTrust() {
	viewer, contact := s.person(), s.person()
	s.trust(viewer, contact, false)
	s.call(viewer, contact, s.now.Add(-45*24*time.Hour), time.Minute)

	score, err := s.service.Confidence(s.ctx, contact, viewer)
	s.Require().NoError(err)
	s.Equal(0.0, score)
}

func (s *ScoringSuite) TestAdvancedConfidenceSpamPenalty() {
	viewer := s.person()
	contact := &models.Person{ID: id.NewPersonID(), CreatedAt: s.now, UpdatedAt: s.now}
	contact.AddPhone("mobile", "+15551234567", "1")
	s.Require().NoError(s.store.CreatePerson(s.ctx, contact))
	s.spam.numbers["15551234567"] = true

	s.trust(viewer, contact.ID, true)
	s.trust(contact.ID, viewer, true)

	score, err := s.service.AdvancedConfidence(s.ctx, contact.ID, viewer)
	s.Require().NoError(err)
	// mutual trust contributes 20; spam penalty 30 clamps at zero.
	s.Equal(0.0, score)
}

func (s *ScoringSuite) TestAdvancedConfidenceMutualFriends() {
	viewer, contact := s.person(), s.person()
	for i := 0; i < 3; i++ {
		friend := s.person()
		s.trust(viewer, friend, true)
		s.trust(contact, friend, true)
	}

	score, err := s.service.AdvancedConfidence(s.ctx, contact, viewer)
	s.Require().NoError(err)
	s.Equal(15.0, score)
}

func (s *ScoringSuite) TestAdvancedConfidenceUnknownContact() {
	_, err := s.service.AdvancedConfidence(s.ctx, id.NewPersonID(), s.person())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ScoringSuite) TestInteractionTrustZeroWithoutHistory() {
	a, b := s.person(), s.person()
	score, err := s.service.InteractionTrust(s.ctx, a, b)
	s.Require().NoError(err)
	s.Equal(0.0, score)
}

func (s *ScoringSuite) TestInteractionTrustRecentActivity() {
	a, b := s.person(), s.person()
	s.call(a, b, s.now.Add(-2*24*time.Hour), 10*time.Minute)
	s.message(b, a, s.now.Add(-3*24*time.Hour))

	score, err := s.service.InteractionTrust(s.ctx, a, b)
	s.Require().NoError(err)
	// One call and one message over ~12.9 weeks, 10-minute average duration,
	// recency within a week, one distinct active week.
	s.InDelta(43, score, 1)
	s.LessOrEqual(score, 100.0)
}

func (s *ScoringSuite) TestInteractionTrustClampedAtHundred() {
	a, b := s.person(), s.person()
	for week := 0; week < 12; week++ {
		at := s.now.Add(-time.Duration(week*7) * 24 * time.Hour)
		for i := 0; i < 10; i++ {
			s.call(a, b, at.Add(-time.Duration(i)*time.Hour), 30*time.Minute)
			s.message(a, b, at.Add(-time.Duration(i)*time.Minute))
		}
	}

	score, err := s.service.InteractionTrust(s.ctx, a, b)
	s.Require().NoError(err)
	s.Equal(100.0, score)
}

func (s *ScoringSuite) TestPageRankSumsToOne() {
	a, b, c := s.person(), s.person(), s.person()
	s.trust(a, b, true)
	s.trust(b, c, true)
	s.trust(c, a, true)
	s.trust(a, c, true)

	ranks, err := s.service.ComputePageRank(s.ctx, PageRankParams{})
	s.Require().NoError(err)
	s.Len(ranks, 3)
	sum := 0.0
	for _, r := range ranks {
		sum += r
	}
	s.InDelta(1.0, sum, 1e-6)
}

func (s *ScoringSuite) TestPageRankFavorsInDegree() {
	hub := s.person()
	var spokes []id.PersonID
	for i := 0; i < 4; i++ {
		spoke := s.person()
		spokes = append(spokes, spoke)
		s.trust(spoke, hub, true)
	}

	ranks, err := s.service.ComputePageRank(s.ctx, PageRankParams{})
	s.Require().NoError(err)
	for _, spoke := range spokes {
		s.Greater(ranks[hub], ranks[spoke])
	}
}

func (s *ScoringSuite) TestPageRankEmptyGraph() {
	ranks, err := s.service.ComputePageRank(s.ctx, PageRankParams{})
	s.Require().NoError(err)
	s.Empty(ranks)
}

func (s *ScoringSuite) TestPageRankRejectsBadDamping() {
	_, err := s.service.ComputePageRank(s.ctx, PageRankParams{Damping: 1.5})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ScoringSuite) TestPropagationDirectEdge() {
	a, b := s.person(), s.person()
	s.trust(a, b, true)

	score, err := s.service.PropagationScore(s.ctx, a, b)
	s.Require().NoError(err)
	s.InDelta(1.0/1.75, score, 1e-9)
}

func (s *ScoringSuite) TestPropagationShortestPathWins() {
	a, mid, b := s.person(), s.person(), s.person()
	s.trust(a, mid, true)
	s.trust(mid, b, true)
	s.trust(a, b, true) // direct route must win over the two-hop one

	score, err := s.service.PropagationScore(s.ctx, a, b)
	s.Require().NoError(err)
	s.InDelta(1.0/1.75, score, 1e-9)
}

func (s *ScoringSuite) TestPropagationTwoAndThreeHop() {
	a, m1, b := s.person(), s.person(), s.person()
	s.trust(a, m1, true)
	s.trust(m1, b, true)

	score, err := s.service.PropagationScore(s.ctx, a, b)
	s.Require().NoError(err)
	s.InDelta(0.5/1.75, score, 1e-9)

	c := s.person()
	s.trust(b, c, true)

	score, err = s.service.PropagationScore(s.ctx, a, c)
	s.Require().NoError(err)
	s.InDelta(0.25/1.75, score, 1e-9)
}

func (s *ScoringSuite) TestPropagationUnreachable() {
	score, err := s.service.PropagationScore(s.ctx, s.person(), s.person())
	s.Require().NoError(err)
	s.Equal(0.0, score)
}

func (s *ScoringSuite) TestPredictionFavorsSharedStructure() {
	// a trusts all three hubs, b trusts two of them, and c hangs off the
	// graph with a single outgoing edge. b shares latent structure with a,
	// so b→h3 should outscore b→c, which has no shared neighbors.
	a, b, c := s.person(), s.person(), s.person()
	h1, h2, h3 := s.person(), s.person(), s.person()
	s.trust(a, h1, true)
	s.trust(a, h2, true)
	s.trust(a, h3, true)
	s.trust(b, h1, true)
	s.trust(b, h2, true)
	s.trust(c, a, true)

	predictions, err := s.service.PredictMissingTrustEdges(s.ctx, PredictionParams{TopN: 100})
	s.Require().NoError(err)
	s.Require().NotEmpty(predictions)

	scoreOf := func(from, to id.PersonID) float64 {
		for _, p := range predictions {
			if p.From == from && p.To == to {
				return p.Score
			}
		}
		s.FailNow("prediction missing", "%s -> %s", from, to)
		return 0
	}
	s.Greater(scoreOf(b, h3), scoreOf(b, c))
}

func (s *ScoringSuite) TestPredictionExcludesExistingAndSelfPairs() {
	a, b := s.person(), s.person()
	s.trust(a, b, true)

	predictions, err := s.service.PredictMissingTrustEdges(s.ctx, PredictionParams{})
	s.Require().NoError(err)
	for _, p := range predictions {
		s.NotEqual(p.From, p.To)
		s.False(p.From == a && p.To == b)
	}
}

func (s *ScoringSuite) TestPredictionDeterministic() {
	a, b, c := s.person(), s.person(), s.person()
	s.trust(a, b, true)
	s.trust(b, c, true)

	first, err := s.service.PredictMissingTrustEdges(s.ctx, PredictionParams{})
	s.Require().NoError(err)
	second, err := s.service.PredictMissingTrustEdges(s.ctx, PredictionParams{})
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *ScoringSuite) TestRefreshTrustScoreStampsPerson() {
	a, b := s.person(), s.person()
	_, err := s.store.UpsertContactEdge(s.ctx, a, b, s.now)
	s.Require().NoError(err)
	s.call(a, b, s.now.Add(-24*time.Hour), 10*time.Minute)

	s.Require().NoError(s.service.RefreshTrustScore(s.ctx, a))

	person, err := s.store.GetPerson(s.ctx, a)
	s.Require().NoError(err)
	s.Greater(person.TrustScore, 0.0)
	s.Equal(s.now, person.TrustScoreAt)
}

func (s *ScoringSuite) TestRefreshTrustScoreUnknownPerson() {
	err := s.service.RefreshTrustScore(s.ctx, id.NewPersonID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ScoringSuite) TestRefreshTrustScoreNoContacts() {
	a := s.person()
	s.Require().NoError(s.service.RefreshTrustScore(s.ctx, a))

	person, err := s.store.GetPerson(s.ctx, a)
	s.Require().NoError(err)
	s.Equal(0.0, person.TrustScore)
}
