package identity

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"ripple/internal/graph/store"
	dErrors "ripple/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
	ctx     context.Context
}

func (s *ResolverSuite) SetupTest() {
	s.store = store.NewMemory()
	s.service = New(s.store, slog.Default())
	s.ctx = context.Background()
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) TestRequiresAnIdentifier() {
	_, err := s.service.FindOrCreatePerson(s.ctx, "", "", "1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ResolverSuite) TestCreatesWhenNothingMatches() {
	person, err := s.service.FindOrCreatePerson(s.ctx, "555 111-2222", "ada@example.com", "1")
	s.Require().NoError(err)
	s.Equal("+15551112222", person.PrimaryPhone())
	s.Equal("ada@example.com", person.PrimaryEmail())
}

func (s *ResolverSuite) TestEmailMatchWinsOverPhone() {
	first, err := s.service.FindOrCreatePerson(s.ctx, "", "ada@example.com", "1")
	s.Require().NoError(err)
	other, err := s.service.FindOrCreatePerson(s.ctx, "555 333-4444", "", "1")
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)

	// Both identifiers supplied: email match resolves to the first person and
	// the phone is merged onto it, even though the phone matches the other.
	resolved, err := s.service.FindOrCreatePerson(s.ctx, "555 333-4444", "ada@example.com", "1")
	s.Require().NoError(err)
	s.Equal(first.ID, resolved.ID)
	s.True(resolved.HasPhone("+15553334444"))
}

func (s *ResolverSuite) TestPhoneMatchMergesEmail() {
	created, err := s.service.FindOrCreatePerson(s.ctx, "555 111-2222", "", "1")
	s.Require().NoError(err)

	resolved, err := s.service.FindOrCreatePerson(s.ctx, "+15551112222", "new@example.com", "1")
	s.Require().NoError(err)
	s.Equal(created.ID, resolved.ID)

	stored, err := s.store.GetPerson(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(stored.HasEmail("new@example.com"))
}

func (s *ResolverSuite) TestResolutionIsIdempotent() {
	first, err := s.service.FindOrCreatePerson(s.ctx, "555 111-2222", "ada@example.com", "1")
	s.Require().NoError(err)
	second, err := s.service.FindOrCreatePerson(s.ctx, "555 111-2222", "ada@example.com", "1")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	persons, err := s.store.ListPersons(s.ctx)
	s.Require().NoError(err)
	s.Len(persons, 1)
}
