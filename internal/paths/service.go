// Package paths resolves connection paths between persons, depth-limited to
// two hops.
package paths

import (
	"context"
	"errors"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
	"ripple/pkg/platform/sentinel"
)

// MaxDepth bounds path resolution; the product only surfaces first- and
// second-level connections.
const MaxDepth = 2

// Store is the slice of the graph store the resolver needs.
type Store interface {
	ContactEdgeEitherDirection(ctx context.Context, a, b id.PersonID) (bool, error)
	ListContactEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.ContactEdge, error)
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	GetAlias(ctx context.Context, userID id.UserID, personID id.PersonID) (*models.ContactAlias, error)
}

// Path is a resolved connection between two persons. Via is set for level-2
// paths only.
type Path struct {
	Path  []id.PersonID `json:"path"`
	Level int           `json:"level"`
	Via   *id.PersonID  `json:"viaPersonId,omitempty"`
}

// Hop is a path node decorated with a display name.
type Hop struct {
	PersonID id.PersonID `json:"personId"`
	Name     string      `json:"name"`
}

// Service resolves paths over the contact-edge graph.
type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// FindConnectionPath returns the shortest connection path between from and to,
// or nil when none exists within maxDepth.
//
// Levels are evaluated shortest-first: a direct edge (either direction) always
// wins over any two-hop route. Level-2 candidates are scanned in ascending
// neighbor-id order, so which intermediary is reported is deterministic even
// when several qualify.
func (s *Service) FindConnectionPath(ctx context.Context, from, to id.PersonID, maxDepth int) (*Path, error) {
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "from and to person ids are required")
	}
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}

	direct, err := s.store.ContactEdgeEitherDirection(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "path lookup failed")
	}
	if direct {
		return &Path{Path: []id.PersonID{from, to}, Level: 1}, nil
	}
	if maxDepth < 2 {
		return nil, nil
	}

	neighbors, err := s.store.ListContactEdgesFrom(ctx, from)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "path lookup failed")
	}
	for _, edge := range neighbors {
		if edge.To == to {
			continue
		}
		connected, err := s.store.ContactEdgeEitherDirection(ctx, edge.To, to)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "path lookup failed")
		}
		if connected {
			via := edge.To
			return &Path{Path: []id.PersonID{from, via, to}, Level: 2, Via: &via}, nil
		}
	}
	return nil, nil
}

// Describe decorates each hop with the name the viewer sees: their alias for
// the person, falling back to the person's first email, first phone, then
// "Unknown".
func (s *Service) Describe(ctx context.Context, viewerID id.UserID, path *Path) ([]Hop, error) {
	if path == nil {
		return nil, nil
	}
	hops := make([]Hop, 0, len(path.Path))
	for _, personID := range path.Path {
		name, err := s.displayName(ctx, viewerID, personID)
		if err != nil {
			return nil, err
		}
		hops = append(hops, Hop{PersonID: personID, Name: name})
	}
	return hops, nil
}

func (s *Service) displayName(ctx context.Context, viewerID id.UserID, personID id.PersonID) (string, error) {
	if !viewerID.IsNil() {
		alias, err := s.store.GetAlias(ctx, viewerID, personID)
		if err == nil && alias.Alias != "" {
			return alias.Alias, nil
		}
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "alias lookup failed")
		}
	}
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "Unknown", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
	}
	return person.DisplayName(), nil
}
