package connections

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

type ConnectionSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
	ctx     context.Context
	now     time.Time
}

func (s *ConnectionSuite) SetupTest() {
	s.store = store.NewMemory()
	s.service = New(s.store, slog.New(slog.DiscardHandler))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestConnectionSuite(t *testing.T) {
	suite.Run(t, new(ConnectionSuite))
}

func (s *ConnectionSuite) person() id.PersonID {
	p := &models.Person{ID: id.NewPersonID(), CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))
	return p.ID
}

func (s *ConnectionSuite) registered() (id.PersonID, id.UserID) {
	userID := id.UserID(uuid.New())
	p := &models.Person{
		ID: id.NewPersonID(), RegisteredUserID: &userID,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.CreatePerson(s.ctx, p))
	return p.ID, userID
}

func (s *ConnectionSuite) request(from, to id.PersonID) *models.ConnectionRequest {
	req, err := s.service.CreateConnectionRequest(s.ctx, from, to, "hi")
	s.Require().NoError(err)
	return req
}

func (s *ConnectionSuite) TestCreateRequiresDistinctIDs() {
	a := s.person()
	_, err := s.service.CreateConnectionRequest(s.ctx, a, a, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.CreateConnectionRequest(s.ctx, a, id.PersonID{}, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ConnectionSuite) TestCreateUnknownPerson() {
	_, err := s.service.CreateConnectionRequest(s.ctx, s.person(), id.NewPersonID(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConnectionSuite) TestCreatePendingRequest() {
	a, b := s.person(), s.person()
	req := s.request(a, b)

	s.Equal(models.RequestPending, req.Status)
	s.Equal(1, req.RequestCount)
	s.Equal(s.now, req.CreatedAt)
}

func (s *ConnectionSuite) TestCreateBlockedEitherDirection() {
	requester, _ := s.registered()
	recipient, recipientUser := s.registered()

	s.Require().NoError(s.service.Block(s.ctx, recipientUser, &requester, "", "spam"))

	_, err := s.service.CreateConnectionRequest(s.ctx, requester, recipient, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonBlocked))

	// The requester blocking the recipient refuses the request too.
	other, otherUser := s.registered()
	target := s.person()
	s.Require().NoError(s.service.Block(s.ctx, otherUser, &target, "", ""))

	_, err = s.service.CreateConnectionRequest(s.ctx, other, target, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonBlocked))
}

func (s *ConnectionSuite) TestCreateBlockedByPhoneNumber() {
	recipient, recipientUser := s.registered()
	requester := &models.Person{ID: id.NewPersonID(), CreatedAt: s.now, UpdatedAt: s.now}
	requester.AddPhone("mobile", "+1 (555) 123-4567", "1")
	s.Require().NoError(s.store.CreatePerson(s.ctx, requester))

	s.Require().NoError(s.service.Block(s.ctx, recipientUser, nil, "15551234567", ""))

	_, err := s.service.CreateConnectionRequest(s.ctx, requester.ID, recipient, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonBlocked))
}

func (s *ConnectionSuite) TestCreateAlreadyConnected() {
	a, b := s.person(), s.person()
	_, err := s.store.UpsertContactEdge(s.ctx, b, a, s.now)
	s.Require().NoError(err)

	_, err = s.service.CreateConnectionRequest(s.ctx, a, b, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonAlreadyConnected))
}

func (s *ConnectionSuite) TestCreateDuplicatePending() {
	a, b := s.person(), s.person()
	s.request(a, b)

	_, err := s.service.CreateConnectionRequest(s.ctx, a, b, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonRequestExists))
}

func (s *ConnectionSuite) TestCreateCeilingAfterRejections() {
	a := s.person()
	b, bUser := s.registered()

	first := s.request(a, b)
	_, err := s.service.RejectConnectionRequest(s.ctx, first.ID, bUser)
	s.Require().NoError(err)

	// One re-request is allowed after a rejection.
	second := s.request(a, b)
	_, err = s.service.RejectConnectionRequest(s.ctx, second.ID, bUser)
	s.Require().NoError(err)

	_, err = s.service.CreateConnectionRequest(s.ctx, a, b, "")
	s.True(dErrors.HasReason(err, dErrors.ReasonMaxRequestsReached))
}

func (s *ConnectionSuite) TestApproveCreatesEdgesAndAlias() {
	requester, _ := s.registered()
	recipient, recipientUser := s.registered()
	req := s.request(requester, recipient)

	approved, err := s.service.ApproveConnectionRequest(s.ctx, req.ID, recipientUser)
	s.Require().NoError(err)
	s.Equal(models.RequestApproved, approved.Status)

	connected, err := s.store.ContactEdgeEitherDirection(s.ctx, requester, recipient)
	s.Require().NoError(err)
	s.True(connected)
	_, err = s.store.GetContactEdge(s.ctx, recipient, requester)
	s.Require().NoError(err)

	requesterPerson, err := s.store.GetPerson(s.ctx, requester)
	s.Require().NoError(err)
	alias, err := s.store.GetAlias(s.ctx, *requesterPerson.RegisteredUserID, recipient)
	s.Require().NoError(err)
	s.NotNil(alias)
}

func (s *ConnectionSuite) TestApproveRequiresRecipient() {
	requester, requesterUser := s.registered()
	recipient, _ := s.registered()
	req := s.request(requester, recipient)

	_, err := s.service.ApproveConnectionRequest(s.ctx, req.ID, requesterUser)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ConnectionSuite) TestApproveTwiceConflicts() {
	requester := s.person()
	recipient, recipientUser := s.registered()
	req := s.request(requester, recipient)

	_, err := s.service.ApproveConnectionRequest(s.ctx, req.ID, recipientUser)
	s.Require().NoError(err)

	_, err = s.service.ApproveConnectionRequest(s.ctx, req.ID, recipientUser)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ConnectionSuite) TestApproveUnknownRequest() {
	_, userID := s.registered()
	_, err := s.service.ApproveConnectionRequest(s.ctx, id.NewRequestID(), userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConnectionSuite) TestRejectLeavesNoEdges() {
	requester := s.person()
	recipient, recipientUser := s.registered()
	req := s.request(requester, recipient)

	rejected, err := s.service.RejectConnectionRequest(s.ctx, req.ID, recipientUser)
	s.Require().NoError(err)
	s.Equal(models.RequestRejected, rejected.Status)

	connected, err := s.store.ContactEdgeEitherDirection(s.ctx, requester, recipient)
	s.Require().NoError(err)
	s.False(connected)
}

func (s *ConnectionSuite) TestUnblockUnknownBlock() {
	err := s.service.Unblock(s.ctx, id.UserID(uuid.New()), id.NewPersonID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConnectionSuite) TestBlockValidation() {
	err := s.service.Block(s.ctx, id.UserID(uuid.New()), nil, "", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
