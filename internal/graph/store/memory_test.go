package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	"ripple/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
	now   time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newPerson(email string) *models.Person {
	p := &models.Person{
		ID:        id.NewPersonID(),
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	if email != "" {
		p.AddEmail("home", email)
	}
	return p
}

func (s *MemoryStoreSuite) TestPersonLookups() {
	s.Run("finds by email case-insensitively", func() {
		p := s.newPerson("Ada@Example.com")
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		found, err := s.store.FindPersonByEmail(s.ctx, "ada@example.com")
		s.Require().NoError(err)
		s.Equal(p.ID, found.ID)
	})

	s.Run("finds by raw or normalized phone", func() {
		p := s.newPerson("")
		p.AddPhone("mobile", "555 111-2222", "1")
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		byE164, err := s.store.FindPersonByPhone(s.ctx, "+15551112222")
		s.Require().NoError(err)
		s.Equal(p.ID, byE164.ID)

		byRaw, err := s.store.FindPersonByPhone(s.ctx, "555 111-2222")
		s.Require().NoError(err)
		s.Equal(p.ID, byRaw.ID)
	})

	s.Run("returns ErrNotFound for unknown person", func() {
		_, err := s.store.GetPerson(s.ctx, id.NewPersonID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("mutations do not leak through returned copies", func() {
		p := s.newPerson("copy@example.com")
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		found, err := s.store.GetPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		found.Company = "mutated"

		again, err := s.store.GetPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Empty(again.Company)
	})
}

func (s *MemoryStoreSuite) TestContactEdgeUpsert() {
	a, b := id.NewPersonID(), id.NewPersonID()

	s.Run("first upsert creates with weight one", func() {
		edge, err := s.store.UpsertContactEdge(s.ctx, a, b, s.now)
		s.Require().NoError(err)
		s.Equal(1, edge.Weight)
	})

	s.Run("repeat upserts increment weight", func() {
		edge, err := s.store.UpsertContactEdge(s.ctx, a, b, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(2, edge.Weight)
		s.Equal(s.now.Add(time.Hour), edge.LastContactedAt)
	})

	s.Run("either-direction check sees the reverse edge", func() {
		ok, err := s.store.ContactEdgeEitherDirection(s.ctx, b, a)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("directed lookup misses the reverse edge", func() {
		_, err := s.store.GetContactEdge(s.ctx, b, a)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestTrustEdgeUpsertIsIdempotent() {
	a, b := id.NewPersonID(), id.NewPersonID()

	first, err := s.store.UpsertTrustEdge(s.ctx, &models.TrustEdge{From: a, To: b, Confirmed: true, Level: 1, CreatedAt: s.now})
	s.Require().NoError(err)
	s.True(first.Confirmed)

	second, err := s.store.UpsertTrustEdge(s.ctx, &models.TrustEdge{From: a, To: b, Confirmed: true, Level: 3, CreatedAt: s.now})
	s.Require().NoError(err)
	s.Equal(3, second.Level)

	edges, err := s.store.ListTrustEdgesFrom(s.ctx, a)
	s.Require().NoError(err)
	s.Len(edges, 1)
}

func (s *MemoryStoreSuite) TestRequestTransitions() {
	req := &models.ConnectionRequest{
		ID:           id.NewRequestID(),
		From:         id.NewPersonID(),
		To:           id.NewPersonID(),
		Status:       models.RequestPending,
		RequestCount: 1,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.store.CreateRequest(s.ctx, req))

	s.Run("pending to approved succeeds once", func() {
		got, err := s.store.TransitionRequest(s.ctx, req.ID, models.RequestPending, models.RequestApproved, s.now)
		s.Require().NoError(err)
		s.Equal(models.RequestApproved, got.Status)
	})

	s.Run("second approval observes invalid state", func() {
		_, err := s.store.TransitionRequest(s.ctx, req.ID, models.RequestPending, models.RequestApproved, s.now)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("count accumulates across requests for the pair", func() {
		again := &models.ConnectionRequest{
			ID: id.NewRequestID(), From: req.From, To: req.To,
			Status: models.RequestPending, RequestCount: 1,
			CreatedAt: s.now, UpdatedAt: s.now,
		}
		s.Require().NoError(s.store.CreateRequest(s.ctx, again))

		total, err := s.store.TotalRequestCount(s.ctx, req.From, req.To)
		s.Require().NoError(err)
		s.Equal(2, total)
	})
}

func (s *MemoryStoreSuite) TestEventTransitions() {
	event := &models.UpdateEvent{
		ID:         id.NewEventID(),
		PersonID:   id.NewPersonID(),
		FromUserID: id.UserID(uuid.New()),
		Field:      "company",
		NewValue:   "Initech",
		State:      models.EventPendingApproval,
		CreatedAt:  s.now,
	}
	s.Require().NoError(s.store.CreateEvent(s.ctx, event))

	applied, err := s.store.TransitionEvent(s.ctx, event.ID, models.EventPendingApproval, models.EventApplied, s.now)
	s.Require().NoError(err)
	s.Equal(models.EventApplied, applied.State)
	s.NotNil(applied.ResolvedAt)

	_, err = s.store.TransitionEvent(s.ctx, event.ID, models.EventPendingApproval, models.EventApplied, s.now)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *MemoryStoreSuite) TestDeletePersonCascades() {
	a := s.newPerson("a@example.com")
	b := s.newPerson("b@example.com")
	s.Require().NoError(s.store.CreatePerson(s.ctx, a))
	s.Require().NoError(s.store.CreatePerson(s.ctx, b))
	_, err := s.store.UpsertContactEdge(s.ctx, a.ID, b.ID, s.now)
	s.Require().NoError(err)

	s.Require().NoError(s.store.DeletePerson(s.ctx, b.ID))

	edges, err := s.store.ListContactEdgesFrom(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(edges)
}

func (s *MemoryStoreSuite) TestReplaceDeltasDoesNotResolveFreshBatch() {
	userID := id.UserID(uuid.New())
	first := []*models.SyncDelta{{Phone: "+15550001111", Type: models.DeltaNew, CreatedAt: s.now}}
	s.Require().NoError(s.store.ReplaceDeltas(s.ctx, userID, first))

	second := []*models.SyncDelta{{Phone: "+15550002222", Type: models.DeltaNew, CreatedAt: s.now}}
	s.Require().NoError(s.store.ReplaceDeltas(s.ctx, userID, second))

	unresolved, err := s.store.ListUnresolvedDeltas(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(unresolved, 1)
	s.Equal("+15550002222", unresolved[0].Phone)
}
