// Package propagation routes contact field edits: direct application for
// registered identities, the stealth-gated approval workflow for everyone
// else.
package propagation

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

// Fields an edit may target. "name" lives on the editor's alias, not on the
// person itself.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldAddress  = "address"
	FieldCompany  = "company"
	FieldJobTitle = "jobTitle"
	FieldBirthday = "birthday"
)

// Store is the slice of the graph store the workflow needs.
type Store interface {
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	ListContactEdgesTo(ctx context.Context, to id.PersonID) ([]*models.ContactEdge, error)
	GetAlias(ctx context.Context, userID id.UserID, personID id.PersonID) (*models.ContactAlias, error)
	UpsertAlias(ctx context.Context, alias *models.ContactAlias) error
	CreateEvent(ctx context.Context, event *models.UpdateEvent) error
	GetEvent(ctx context.Context, eventID id.EventID) (*models.UpdateEvent, error)
	ListEventsForPerson(ctx context.Context, personID id.PersonID, state models.EventState) ([]*models.UpdateEvent, error)
	TransitionEvent(ctx context.Context, eventID id.EventID, from, to models.EventState, at time.Time) (*models.UpdateEvent, error)
}

// Service runs the update-propagation workflow.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithPublisher wires the kafka announcement of pending events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, publisher: noPublisher{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProposeFieldUpdate ingests a contact field edit by the given user.
//
// When the backing person is registered they control their own identity: the
// change applies immediately, no approval involved. Otherwise an UpdateEvent
// is created — Hidden when the editor is in stealth mode (suppressed from
// discovery), PendingApproval when not, in which case the event is announced
// for the subject's first-level connections to apply or ignore.
func (s *Service) ProposeFieldUpdate(ctx context.Context, editor id.UserID, personID id.PersonID, field, newValue string, stealth bool) (*models.UpdateEvent, error) {
	if editor.IsNil() || personID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "editor and person ids are required")
	}
	if field == "" || newValue == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "field and newValue are required")
	}
	if !validField(field) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown field %q", field)
	}

	person, err := s.getPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if person.IsRegistered() {
		if err := s.applyField(ctx, person, field, newValue, now); err != nil {
			return nil, err
		}
		if err := s.updateAliasView(ctx, editor, personID, field, newValue, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	state := models.EventPendingApproval
	if stealth {
		state = models.EventHidden
	}
	event := &models.UpdateEvent{
		ID:         id.NewEventID(),
		PersonID:   personID,
		FromUserID: editor,
		Field:      field,
		OldValue:   currentValue(person, field),
		NewValue:   newValue,
		State:      state,
		CreatedAt:  now,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event creation failed")
	}
	if state == models.EventPendingApproval {
		s.publisher.PublishEvent(ctx, event)
	}
	s.logger.Info("update event created",
		"eventId", event.ID.String(), "personId", personID.String(),
		"field", field, "state", string(state))
	return event, nil
}

// ListPendingEvents returns the events awaiting the approver's decision for
// the given person. Hidden events never appear. Restricted to first-level
// connections of the subject.
func (s *Service) ListPendingEvents(ctx context.Context, approver id.UserID, personID id.PersonID) ([]*models.UpdateEvent, error) {
	if approver.IsNil() || personID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "approver and person ids are required")
	}
	if err := s.requireFirstLevel(ctx, approver, personID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEventsForPerson(ctx, personID, models.EventPendingApproval)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event listing failed")
	}
	return events, nil
}

// ApplyUpdateEvent resolves a pending event. With ignore set the event is
// dismissed without mutation; otherwise the new value is written onto the
// person and, when the approver keeps an alias for them, onto that view.
//
// The pending→terminal transition is a single conditional store update, so a
// concurrent duplicate resolution conflicts instead of double-applying.
func (s *Service) ApplyUpdateEvent(ctx context.Context, eventID id.EventID, approver id.UserID, ignore bool) (*models.UpdateEvent, error) {
	if eventID.IsNil() || approver.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event and approver ids are required")
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "update event not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event lookup failed")
	}
	// Hidden events are invisible: not listed, not appliable.
	if event.State == models.EventHidden {
		return nil, dErrors.New(dErrors.CodeNotFound, "update event not found")
	}
	if event.State.Terminal() {
		return nil, dErrors.Conflict(dErrors.ReasonAlreadyApplied, "update event is already resolved")
	}
	if err := s.requireFirstLevel(ctx, approver, event.PersonID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	target := models.EventApplied
	if ignore {
		target = models.EventIgnored
	}
	resolved, err := s.store.TransitionEvent(ctx, eventID, models.EventPendingApproval, target, now)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil, dErrors.Conflict(dErrors.ReasonAlreadyApplied, "update event is already resolved")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event transition failed")
	}
	if ignore {
		s.logger.Info("update event ignored", "eventId", eventID.String())
		return resolved, nil
	}

	person, err := s.getPerson(ctx, event.PersonID)
	if err != nil {
		return nil, err
	}
	if err := s.applyField(ctx, person, event.Field, event.NewValue, now); err != nil {
		return nil, err
	}
	if err := s.updateAliasView(ctx, approver, event.PersonID, event.Field, event.NewValue, now); err != nil {
		return nil, err
	}
	s.logger.Info("update event applied",
		"eventId", eventID.String(), "field", event.Field)
	return resolved, nil
}

// requireFirstLevel checks that the approver's person holds a contact edge
// pointing at the subject. Second-level connections never qualify.
func (s *Service) requireFirstLevel(ctx context.Context, approver id.UserID, subject id.PersonID) error {
	edges, err := s.store.ListContactEdgesTo(ctx, subject)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "edge listing failed")
	}
	for _, edge := range edges {
		holder, err := s.store.GetPerson(ctx, edge.From)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
		}
		if holder.IsRegistered() && *holder.RegisteredUserID == approver {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "only first-level connections may act on this person")
}

func (s *Service) getPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
	}
	return person, nil
}

// applyField writes a field edit onto the person. Name edits live on aliases
// only, so they leave the person untouched.
func (s *Service) applyField(ctx context.Context, person *models.Person, field, value string, now time.Time) error {
	changed := true
	switch field {
	case FieldName:
		changed = false
	case FieldEmail:
		changed = person.AddEmail("other", value)
	case FieldPhone:
		changed = person.AddPhone("other", value, "")
	case FieldAddress:
		changed = !containsString(person.Addresses, value)
		if changed {
			person.Addresses = append(person.Addresses, value)
		}
	case FieldCompany:
		changed = person.Company != value
		person.Company = value
	case FieldJobTitle:
		changed = person.JobTitle != value
		person.JobTitle = value
	case FieldBirthday:
		changed = person.Birthday != value
		person.Birthday = value
	}
	if !changed {
		return nil
	}
	person.UpdatedAt = now
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "person persist failed")
	}
	return nil
}

// updateAliasView renames the user's alias entry when the edit targets the
// display name and an alias exists. Other fields have no per-viewer copy.
func (s *Service) updateAliasView(ctx context.Context, userID id.UserID, personID id.PersonID, field, value string, now time.Time) error {
	if field != FieldName {
		return nil
	}
	alias, err := s.store.GetAlias(ctx, userID, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		alias = &models.ContactAlias{UserID: userID, PersonID: personID}
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "alias lookup failed")
	}
	alias.Alias = value
	alias.LastContactedAt = now
	if err := s.store.UpsertAlias(ctx, alias); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "alias persist failed")
	}
	return nil
}

func currentValue(person *models.Person, field string) string {
	switch field {
	case FieldEmail:
		return person.PrimaryEmail()
	case FieldPhone:
		return person.PrimaryPhone()
	case FieldAddress:
		if len(person.Addresses) > 0 {
			return person.Addresses[0]
		}
	case FieldCompany:
		return person.Company
	case FieldJobTitle:
		return person.JobTitle
	case FieldBirthday:
		return person.Birthday
	}
	return ""
}

func validField(field string) bool {
	switch field {
	case FieldName, FieldEmail, FieldPhone, FieldAddress, FieldCompany, FieldJobTitle, FieldBirthday:
		return true
	}
	return false
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
