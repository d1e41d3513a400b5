package duplicates

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
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

type DuplicateSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
	ctx     context.Context
	now     time.Time
}

func (s *DuplicateSuite) SetupTest() {
	s.store = store.NewMemory()
	s.service = New(s.store, slog.New(slog.DiscardHandler))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestDuplicateSuite(t *testing.T) {
	suite.Run(t, new(DuplicateSuite))
}

func (s *DuplicateSuite) create(p *models.Person) *models.Person {
	p.ID = id.NewPersonID()
	p.CreatedAt, p.UpdatedAt = s.now, s.now
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))
	return p
}

func (s *DuplicateSuite) TestFindGroupsByPhoneDigits() {
	a := &models.Person{}
	a.AddPhone("mobile", "+1 (555) 111-2222", "1")
	s.create(a)
	b := &models.Person{}
	b.AddPhone("work", "+15551112222", "1")
	s.create(b)
	c := &models.Person{}
	c.AddPhone("mobile", "+15559998888", "1")
	s.create(c)

	groups, err := s.service.FindDuplicateGroups(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 1)
	s.Equal("phone", groups[0].Source)
	s.Equal("15551112222", groups[0].Key)
	s.ElementsMatch([]id.PersonID{a.ID, b.ID}, groups[0].PersonIDs)
}

func (s *DuplicateSuite) TestFindGroupsReportsPhoneAndEmailSeparately() {
	a := &models.Person{}
	a.AddPhone("mobile", "+15551112222", "1")
	a.AddEmail("home", "Dup@Example.com")
	s.create(a)
	b := &models.Person{}
	b.AddPhone("mobile", "+15551112222", "1")
	b.AddEmail("home", "dup@example.com")
	s.create(b)

	groups, err := s.service.FindDuplicateGroups(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)
	s.Equal("phone", groups[0].Source)
	s.Equal("email", groups[1].Source)
	s.ElementsMatch(groups[0].PersonIDs, groups[1].PersonIDs)
}

func (s *DuplicateSuite) TestFindGroupsEmptyWhenNoDuplicates() {
	a := &models.Person{}
	a.AddEmail("home", "solo@example.com")
	s.create(a)

	groups, err := s.service.FindDuplicateGroups(s.ctx)
	s.Require().NoError(err)
	s.Empty(groups)
}

func (s *DuplicateSuite) TestMergePicksRichestAsMaster() {
	rich := &models.Person{Company: "Initech", JobTitle: "Engineer"}
	rich.AddPhone("mobile", "+15551112222", "1")
	rich.AddEmail("home", "rich@example.com")
	s.create(rich)

	poor := &models.Person{Birthday: "1990-04-01", Tags: []string{"gym"}}
	poor.AddPhone("mobile", "+15551112222", "1")
	s.create(poor)

	master, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{poor.ID, rich.ID})
	s.Require().NoError(err)
	s.Equal(rich.ID, master.ID)
	s.Equal("Initech", master.Company)
	s.Equal("1990-04-01", master.Birthday)
	s.Contains(master.Tags, "gym")

	_, err = s.store.GetPerson(s.ctx, poor.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DuplicateSuite) TestMergeRegisteredAlwaysWins() {
	userID := id.UserID(uuid.New())
	registered := &models.Person{RegisteredUserID: &userID}
	s.create(registered)

	rich := &models.Person{Company: "Initech", JobTitle: "Engineer", Birthday: "1990-01-01"}
	rich.AddPhone("mobile", "+15551112222", "1")
	rich.AddEmail("home", "rich@example.com")
	s.create(rich)

	master, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{rich.ID, registered.ID})
	s.Require().NoError(err)
	s.Equal(registered.ID, master.ID)
	s.Equal("Initech", master.Company)
	s.True(master.HasEmail("rich@example.com"))
	s.True(master.HasPhone("+15551112222"))
}

func (s *DuplicateSuite) TestMergeDoesNotOverwriteMasterFields() {
	master := &models.Person{Company: "Initech"}
	master.AddPhone("mobile", "+15551112222", "1")
	master.AddEmail("home", "keep@example.com")
	s.create(master)

	loser := &models.Person{Company: "Globex"}
	s.create(loser)

	merged, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{master.ID, loser.ID})
	s.Require().NoError(err)
	s.Equal(master.ID, merged.ID)
	s.Equal("Initech", merged.Company)
}

func (s *DuplicateSuite) TestMergeReassignsEventsAndCallLogs() {
	keep := &models.Person{Company: "Initech"}
	keep.AddPhone("mobile", "+15551112222", "1")
	s.create(keep)
	lose := &models.Person{}
	s.create(lose)

	event := &models.UpdateEvent{
		ID: id.NewEventID(), PersonID: lose.ID, FromUserID: id.UserID(uuid.New()),
		Field: "company", NewValue: "Globex", State: models.EventPendingApproval,
		CreatedAt: s.now,
	}
	s.Require().NoError(s.store.CreateEvent(s.ctx, event))
	other := s.create(&models.Person{})
	s.Require().NoError(s.store.AppendCallLog(s.ctx, &models.CallLog{
		From: lose.ID, To: other.ID, Kind: models.InteractionCall,
		Duration: time.Minute, At: s.now,
	}))

	_, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{keep.ID, lose.ID})
	s.Require().NoError(err)

	moved, err := s.store.GetEvent(s.ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(keep.ID, moved.PersonID)

	logs, err := s.store.ListCallLogsBetween(s.ctx, keep.ID, other.ID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *DuplicateSuite) TestMergeIdempotent() {
	a := &models.Person{Company: "Initech"}
	a.AddPhone("mobile", "+15551112222", "1")
	s.create(a)
	b := &models.Person{}
	s.create(b)

	first, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{a.ID, b.ID})
	s.Require().NoError(err)

	// The second merge finds a single survivor and changes nothing.
	second, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{a.ID, b.ID})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
}

func (s *DuplicateSuite) TestMergeValidation() {
	_, err := s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{id.NewPersonID()})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.MergeDuplicateGroup(s.ctx, []id.PersonID{id.NewPersonID(), id.NewPersonID()})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
