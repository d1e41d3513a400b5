// Package duplicates finds and merges duplicate identity nodes. Duplicates are
// not prevented at write time; this resolver cleans them up out-of-band.
package duplicates

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/phone"
	"ripple/pkg/platform/sentinel"
	"ripple/pkg/requestcontext"
)

// Store is the slice of the graph store the resolver needs. Merging reassigns
// dependent rows before deleting the losers.
type Store interface {
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	UpdatePerson(ctx context.Context, p *models.Person) error
	ListPersons(ctx context.Context) ([]*models.Person, error)
	DeletePerson(ctx context.Context, personID id.PersonID) error
	ReassignEvents(ctx context.Context, from, to id.PersonID) error
	ReassignCallLogs(ctx context.Context, from, to id.PersonID) error
}

// Group is a set of person ids sharing a normalized phone or email. Source
// says which identifier matched; the same pair can appear once per source.
type Group struct {
	Source    string        `json:"source"` // "phone" or "email"
	Key       string        `json:"key"`
	PersonIDs []id.PersonID `json:"personIds"`
}

// Service resolves duplicate persons.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// FindDuplicateGroups groups all persons by digits-only phone and, separately,
// by lowercase email. Any group with two or more members is reported. A pair
// duplicated on both identifiers appears in both a phone and an email group;
// callers dedupe when presenting.
func (s *Service) FindDuplicateGroups(ctx context.Context) ([]Group, error) {
	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person listing failed")
	}

	byPhone := map[string][]id.PersonID{}
	byEmail := map[string][]id.PersonID{}
	for _, p := range persons {
		seen := map[string]struct{}{}
		for _, ph := range p.Phones {
			digits := phone.Digits(ph.E164)
			if digits == "" {
				continue
			}
			if _, dup := seen[digits]; dup {
				continue
			}
			seen[digits] = struct{}{}
			byPhone[digits] = append(byPhone[digits], p.ID)
		}
		seenEmail := map[string]struct{}{}
		for _, em := range p.Emails {
			if em.Address == "" {
				continue
			}
			if _, dup := seenEmail[em.Address]; dup {
				continue
			}
			seenEmail[em.Address] = struct{}{}
			byEmail[em.Address] = append(byEmail[em.Address], p.ID)
		}
	}

	var groups []Group
	groups = append(groups, collectGroups("phone", byPhone)...)
	groups = append(groups, collectGroups("email", byEmail)...)
	return groups, nil
}

func collectGroups(source string, byKey map[string][]id.PersonID) []Group {
	keys := make([]string, 0, len(byKey))
	for key, members := range byKey {
		if len(members) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		members := byKey[key]
		sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })
		groups = append(groups, Group{Source: source, Key: key, PersonIDs: members})
	}
	return groups
}

// MergeDuplicateGroup merges the given persons into the most complete one.
//
// Members that no longer exist are skipped, which makes the merge idempotent:
// re-merging an already-merged group finds fewer than two survivors and is a
// no-op. The richest profile wins mastership; string fields absent on the
// master are filled from the first other member that has them, tags are
// unioned, and update events and call logs are repointed before the losers are
// deleted.
func (s *Service) MergeDuplicateGroup(ctx context.Context, personIDs []id.PersonID) (*models.Person, error) {
	if len(personIDs) < 2 {
		return nil, dErrors.New(dErrors.CodeValidation, "a merge needs at least two person ids")
	}

	var members []*models.Person
	for _, personID := range personIDs {
		p, err := s.store.GetPerson(ctx, personID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
		}
		members = append(members, p)
	}
	if len(members) < 2 {
		if len(members) == 1 {
			return members[0], nil
		}
		return nil, dErrors.New(dErrors.CodeNotFound, "no persons left to merge")
	}

	sort.SliceStable(members, func(i, j int) bool {
		return completeness(members[i]) > completeness(members[j])
	})
	master, losers := members[0], members[1:]

	for _, loser := range losers {
		absorb(master, loser)
	}
	master.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdatePerson(ctx, master); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "master persist failed")
	}

	for _, loser := range losers {
		if err := s.store.ReassignEvents(ctx, loser.ID, master.ID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event reassignment failed")
		}
		if err := s.store.ReassignCallLogs(ctx, loser.ID, master.ID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "call log reassignment failed")
		}
		if err := s.store.DeletePerson(ctx, loser.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "person deletion failed")
		}
		s.logger.Info("person merged",
			"master", master.ID.String(), "merged", loser.ID.String())
	}
	return master, nil
}

// completeness ranks merge candidates: registered identities always win, then
// profile richness, then the cached trust score as a tiebreak.
func completeness(p *models.Person) float64 {
	score := 0.0
	if p.IsRegistered() {
		score += 1000
	}
	score += float64(len(p.Phones)+len(p.Emails)+len(p.Addresses)+len(p.Handles)+len(p.Tags)) * 10
	for _, field := range []string{p.Company, p.JobTitle, p.Birthday} {
		if field != "" {
			score += 10
		}
	}
	return score + p.TrustScore/101
}

// absorb copies missing fields from the loser onto the master. Additive only:
// nothing on the master is overwritten.
func absorb(master, loser *models.Person) {
	for _, ph := range loser.Phones {
		// The E164 form keeps its leading '+', so no country code is needed.
		master.AddPhone(ph.Label, ph.E164, "")
	}
	for _, em := range loser.Emails {
		master.AddEmail(em.Label, em.Address)
	}
	for _, addr := range loser.Addresses {
		if !contains(master.Addresses, addr) {
			master.Addresses = append(master.Addresses, addr)
		}
	}
	for handle, value := range loser.Handles {
		if master.Handles == nil {
			master.Handles = map[string]string{}
		}
		if _, ok := master.Handles[handle]; !ok {
			master.Handles[handle] = value
		}
	}
	if master.Company == "" {
		master.Company = loser.Company
	}
	if master.JobTitle == "" {
		master.JobTitle = loser.JobTitle
	}
	if master.Birthday == "" {
		master.Birthday = loser.Birthday
	}
	if master.RegisteredUserID == nil {
		master.RegisteredUserID = loser.RegisteredUserID
	}
	for _, tag := range loser.Tags {
		if !contains(master.Tags, tag) {
			master.Tags = append(master.Tags, tag)
		}
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
