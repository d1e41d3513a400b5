// Package connections manages the connection-request lifecycle: request,
// approve, reject, and the block list that gates it.
package connections

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

// Store is the slice of the graph store the connection workflow needs.
type Store interface {
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	ContactEdgeEitherDirection(ctx context.Context, a, b id.PersonID) (bool, error)
	UpsertContactEdge(ctx context.Context, from, to id.PersonID, at time.Time) (*models.ContactEdge, error)
	UpsertAlias(ctx context.Context, alias *models.ContactAlias) error
	AddBlock(ctx context.Context, block *models.BlockedContact) error
	RemoveBlock(ctx context.Context, userID id.UserID, personID id.PersonID) error
	IsBlocked(ctx context.Context, userID id.UserID, personID id.PersonID, phoneNumbers []string) (bool, error)
	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequest(ctx context.Context, requestID id.RequestID) (*models.ConnectionRequest, error)
	FindPendingRequest(ctx context.Context, from, to id.PersonID) (*models.ConnectionRequest, error)
	TotalRequestCount(ctx context.Context, from, to id.PersonID) (int, error)
	TransitionRequest(ctx context.Context, requestID id.RequestID, from, to models.RequestStatus, at time.Time) (*models.ConnectionRequest, error)
}

// Service runs the connection-request workflow.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateConnectionRequest opens a pending request from one person to another.
//
// Refusals, in evaluation order: a block in either direction, an existing
// contact edge, a pending request for the pair, or the cumulative request
// ceiling (one re-request after a rejection).
func (s *Service) CreateConnectionRequest(ctx context.Context, from, to id.PersonID, message string) (*models.ConnectionRequest, error) {
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "from and to person ids are required")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot request a connection to oneself")
	}

	fromPerson, err := s.getPerson(ctx, from)
	if err != nil {
		return nil, err
	}
	toPerson, err := s.getPerson(ctx, to)
	if err != nil {
		return nil, err
	}

	if err := s.checkBlocked(ctx, fromPerson, toPerson); err != nil {
		return nil, err
	}

	connected, err := s.store.ContactEdgeEitherDirection(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "edge lookup failed")
	}
	if connected {
		return nil, dErrors.Conflict(dErrors.ReasonAlreadyConnected, "persons are already connected")
	}

	if _, err := s.store.FindPendingRequest(ctx, from, to); err == nil {
		return nil, dErrors.Conflict(dErrors.ReasonRequestExists, "a pending request already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request lookup failed")
	}

	total, err := s.store.TotalRequestCount(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request count lookup failed")
	}
	if total >= models.MaxRequestCount {
		return nil, dErrors.Conflict(dErrors.ReasonMaxRequestsReached, "request limit reached for this contact")
	}

	now := requestcontext.Now(ctx)
	req := &models.ConnectionRequest{
		ID:           id.NewRequestID(),
		From:         from,
		To:           to,
		Status:       models.RequestPending,
		Message:      message,
		RequestCount: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request creation failed")
	}
	s.logger.Info("connection request created",
		"requestId", req.ID.String(), "from", from.String(), "to", to.String())
	return req, nil
}

// ApproveConnectionRequest transitions a pending request to approved, creates
// the bidirectional contact edges, and gives the requester an alias entry for
// the recipient. Only the recipient may approve.
//
// The pending→approved transition is a single conditional store update, so a
// concurrent duplicate approval fails instead of double-creating edges.
func (s *Service) ApproveConnectionRequest(ctx context.Context, requestID id.RequestID, approver id.UserID) (*models.ConnectionRequest, error) {
	req, err := s.authorizedRequest(ctx, requestID, approver)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	approved, err := s.store.TransitionRequest(ctx, requestID, models.RequestPending, models.RequestApproved, now)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil, dErrors.Conflict("", "request is no longer pending")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request transition failed")
	}

	if _, err := s.store.UpsertContactEdge(ctx, req.From, req.To, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "edge creation failed")
	}
	if _, err := s.store.UpsertContactEdge(ctx, req.To, req.From, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "edge creation failed")
	}

	if err := s.requesterAlias(ctx, req, now); err != nil {
		return nil, err
	}

	s.logger.Info("connection request approved", "requestId", requestID.String())
	return approved, nil
}

// RejectConnectionRequest transitions a pending request to rejected. Only the
// recipient may reject. A rejected pair may try once more before the ceiling.
func (s *Service) RejectConnectionRequest(ctx context.Context, requestID id.RequestID, approver id.UserID) (*models.ConnectionRequest, error) {
	if _, err := s.authorizedRequest(ctx, requestID, approver); err != nil {
		return nil, err
	}

	rejected, err := s.store.TransitionRequest(ctx, requestID, models.RequestPending, models.RequestRejected, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil, dErrors.Conflict("", "request is no longer pending")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request transition failed")
	}
	s.logger.Info("connection request rejected", "requestId", requestID.String())
	return rejected, nil
}

// Block suppresses future requests from the person (or phone number) toward
// the user.
func (s *Service) Block(ctx context.Context, userID id.UserID, personID *id.PersonID, phoneNumber, reason string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if (personID == nil || personID.IsNil()) && phoneNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "a person id or phone number is required")
	}
	block := &models.BlockedContact{
		UserID:      userID,
		PersonID:    personID,
		PhoneNumber: phoneNumber,
		Reason:      reason,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.AddBlock(ctx, block); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "block creation failed")
	}
	return nil
}

// Unblock removes a person-scoped block.
func (s *Service) Unblock(ctx context.Context, userID id.UserID, personID id.PersonID) error {
	if userID.IsNil() || personID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user and person ids are required")
	}
	err := s.store.RemoveBlock(ctx, userID, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "block not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "block removal failed")
	}
	return nil
}

func (s *Service) getPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "person %s not found", personID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
	}
	return person, nil
}

// checkBlocked refuses the request when either registered party blocked the
// other, by person id or by any of their phone numbers.
func (s *Service) checkBlocked(ctx context.Context, from, to *models.Person) error {
	pairs := []struct {
		owner   *models.Person
		subject *models.Person
	}{
		{owner: to, subject: from},
		{owner: from, subject: to},
	}
	for _, pair := range pairs {
		if !pair.owner.IsRegistered() {
			continue
		}
		numbers := make([]string, 0, len(pair.subject.Phones))
		for _, ph := range pair.subject.Phones {
			numbers = append(numbers, ph.E164)
		}
		blocked, err := s.store.IsBlocked(ctx, *pair.owner.RegisteredUserID, pair.subject.ID, numbers)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "block lookup failed")
		}
		if blocked {
			return dErrors.Conflict(dErrors.ReasonBlocked, "connection is blocked")
		}
	}
	return nil
}

// authorizedRequest loads the request and verifies the caller is the
// registered user behind the recipient person.
func (s *Service) authorizedRequest(ctx context.Context, requestID id.RequestID, approver id.UserID) (*models.ConnectionRequest, error) {
	if requestID.IsNil() || approver.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "request and approver ids are required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "connection request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request lookup failed")
	}
	recipient, err := s.getPerson(ctx, req.To)
	if err != nil {
		return nil, err
	}
	if !recipient.IsRegistered() || *recipient.RegisteredUserID != approver {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the request recipient may resolve it")
	}
	return req, nil
}

// requesterAlias gives the requester a contact entry for the newly connected
// person, named by the recipient's fallback display name.
func (s *Service) requesterAlias(ctx context.Context, req *models.ConnectionRequest, now time.Time) error {
	requester, err := s.getPerson(ctx, req.From)
	if err != nil {
		return err
	}
	if !requester.IsRegistered() {
		return nil
	}
	recipient, err := s.getPerson(ctx, req.To)
	if err != nil {
		return err
	}
	alias := &models.ContactAlias{
		UserID:          *requester.RegisteredUserID,
		PersonID:        req.To,
		Alias:           recipient.DisplayName(),
		LastContactedAt: now,
	}
	if err := s.store.UpsertAlias(ctx, alias); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "alias creation failed")
	}
	return nil
}
