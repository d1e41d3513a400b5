// Package identity resolves a phone/email pair to a canonical person,
// creating one when nothing matches.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/phone"
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

// Store is the slice of the graph store the resolver needs.
type Store interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	UpdatePerson(ctx context.Context, p *models.Person) error
	FindPersonByEmail(ctx context.Context, address string) (*models.Person, error)
	FindPersonByPhone(ctx context.Context, number string) (*models.Person, error)
}

// Service implements find-or-create identity resolution.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// FindOrCreatePerson resolves the given identifiers to a person. Lookup order:
// exact email match, then exact phone match (E.164 or raw), then create.
// Matching an existing person merges the other identifier additively, so a hit
// can still mutate the store.
func (s *Service) FindOrCreatePerson(ctx context.Context, phoneRaw, email, countryCode string) (*models.Person, error) {
	phoneRaw = strings.TrimSpace(phoneRaw)
	email = strings.ToLower(strings.TrimSpace(email))
	if phoneRaw == "" && email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone or email is required")
	}

	if email != "" {
		person, err := s.store.FindPersonByEmail(ctx, email)
		switch {
		case err == nil:
			return s.mergePhone(ctx, person, phoneRaw, countryCode)
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person lookup by email failed")
		}
	}

	if phoneRaw != "" {
		e164 := phone.NormalizeE164(phoneRaw, countryCode)
		person, err := s.store.FindPersonByPhone(ctx, e164)
		if errors.Is(err, sentinel.ErrNotFound) {
			person, err = s.store.FindPersonByPhone(ctx, phoneRaw)
		}
		switch {
		case err == nil:
			return s.mergeEmail(ctx, person, email)
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person lookup by phone failed")
		}
	}

	now := requestcontext.Now(ctx)
	person := &models.Person{ID: id.NewPersonID(), CreatedAt: now, UpdatedAt: now}
	person.AddPhone("mobile", phoneRaw, countryCode)
	person.AddEmail("home", email)
	if err := s.store.CreatePerson(ctx, person); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create person failed")
	}
	s.logger.InfoContext(ctx, "person created",
		"person_id", person.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return person, nil
}

func (s *Service) mergePhone(ctx context.Context, person *models.Person, phoneRaw, countryCode string) (*models.Person, error) {
	if phoneRaw == "" || !person.AddPhone("mobile", phoneRaw, countryCode) {
		return person, nil
	}
	person.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "merge phone failed")
	}
	return person, nil
}

func (s *Service) mergeEmail(ctx context.Context, person *models.Person, email string) (*models.Person, error) {
	if email == "" || !person.AddEmail("home", email) {
		return person, nil
	}
	person.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "merge email failed")
	}
	return person, nil
}
