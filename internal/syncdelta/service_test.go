package syncdelta

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ripple/internal/graph/models"
	"ripple/internal/graph/store"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/requestcontext"
)

type SyncDeltaSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
	ctx     context.Context
	userID  id.UserID
	now     time.Time
}

func (s *SyncDeltaSuite) SetupTest() {
	s.store = store.NewMemory()
	s.service = New(s.store, slog.New(slog.DiscardHandler))
	s.userID = id.UserID(uuid.New())
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestSyncDeltaSuite(t *testing.T) {
	suite.Run(t, new(SyncDeltaSuite))
}

func (s *SyncDeltaSuite) contact(phone, name, email, company string) models.SyncContact {
	return models.SyncContact{Phone: phone, Name: name, Email: email, Company: company}
}

func (s *SyncDeltaSuite) TestFirstImportAllNew() {
	deltas, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "ada@example.com", ""),
		s.contact("+15553334444", "Bob", "", "Initech"),
	})
	s.Require().NoError(err)
	s.Require().Len(deltas, 2)
	for _, d := range deltas {
		s.Equal(models.DeltaNew, d.Type)
		s.False(d.Resolved)
	}
}

func (s *SyncDeltaSuite) TestUpdateEmitsOneDeltaPerChangedField() {
	_, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "ada@example.com", "Initech"),
	})
	s.Require().NoError(err)

	deltas, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada Lovelace", "ada@example.com", "Globex"),
	})
	s.Require().NoError(err)
	s.Require().Len(deltas, 2)

	fields := map[string]*models.SyncDelta{}
	for _, d := range deltas {
		s.Equal(models.DeltaUpdate, d.Type)
		fields[d.Field] = d
	}
	s.Require().Contains(fields, "name")
	s.Equal("Ada", fields["name"].OldValue)
	s.Equal("Ada Lovelace", fields["name"].NewValue)
	s.Require().Contains(fields, "company")
	s.Equal("Initech", fields["company"].OldValue)
}

func (s *SyncDeltaSuite) TestDeleteForVanishedEntry() {
	_, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "", ""),
		s.contact("+15553334444", "Bob", "", ""),
	})
	s.Require().NoError(err)

	deltas, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "", ""),
	})
	s.Require().NoError(err)
	s.Require().Len(deltas, 1)
	s.Equal(models.DeltaDelete, deltas[0].Type)
	s.Equal("Bob", deltas[0].OldValue)
}

func (s *SyncDeltaSuite) TestPhoneKeyIgnoresFormatting() {
	_, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+1 (555) 111-2222", "Ada", "", ""),
	})
	s.Require().NoError(err)

	deltas, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "", ""),
	})
	s.Require().NoError(err)
	s.Empty(deltas)
}

func (s *SyncDeltaSuite) TestIdenticalReimportYieldsNothingAndResolvesOldBatch() {
	list := []models.SyncContact{s.contact("+15551112222", "Ada", "", "")}

	first, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, list)
	s.Require().NoError(err)
	s.Len(first, 1)

	second, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, list)
	s.Require().NoError(err)
	s.Empty(second)

	unresolved, err := s.service.ListUnresolvedDeltas(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Empty(unresolved)
}

func (s *SyncDeltaSuite) TestFreshBatchStaysUnresolved() {
	_, err := s.service.ComputeSyncDeltas(s.ctx, s.userID, []models.SyncContact{
		s.contact("+15551112222", "Ada", "", ""),
	})
	s.Require().NoError(err)

	unresolved, err := s.service.ListUnresolvedDeltas(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(unresolved, 1)
	s.False(unresolved[0].Resolved)
}

func (s *SyncDeltaSuite) TestValidation() {
	_, err := s.service.ComputeSyncDeltas(s.ctx, id.UserID{}, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
