// Package syncdelta diffs an imported contact list against the user's previous
// snapshot.
package syncdelta

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

// Store is the slice of the graph store the delta engine needs. ReplaceDeltas
// must resolve the previous unresolved batch and insert the new one in a
// single critical section, so a freshly inserted batch is never resolved by
// its own import.
type Store interface {
	GetSnapshot(ctx context.Context, userID id.UserID) (*models.SyncSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *models.SyncSnapshot) error
	ReplaceDeltas(ctx context.Context, userID id.UserID, deltas []*models.SyncDelta) error
	ListUnresolvedDeltas(ctx context.Context, userID id.UserID) ([]*models.SyncDelta, error)
}

// Service computes and persists sync deltas.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// diffedFields are the per-entry fields an update delta is emitted for.
var diffedFields = []string{"name", "email", "company"}

// ComputeSyncDeltas diffs the imported list against the stored snapshot, keyed
// by digits-only phone: absent-before entries emit a new delta, changed
// entries one update delta per differing field, and vanished entries a delete
// delta. The snapshot is overwritten and the delta set replaced as a side
// effect. Re-importing an identical list yields no deltas.
func (s *Service) ComputeSyncDeltas(ctx context.Context, userID id.UserID, imported []models.SyncContact) ([]*models.SyncDelta, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}

	old := map[string]models.SyncContact{}
	snap, err := s.store.GetSnapshot(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot lookup failed")
	}
	if snap != nil {
		for _, c := range snap.Contacts {
			if key := phone.Digits(c.Phone); key != "" {
				old[key] = c
			}
		}
	}

	now := requestcontext.Now(ctx)
	fresh := map[string]models.SyncContact{}
	var deltas []*models.SyncDelta
	for _, c := range imported {
		key := phone.Digits(c.Phone)
		if key == "" {
			continue
		}
		fresh[key] = c

		prev, known := old[key]
		if !known {
			deltas = append(deltas, &models.SyncDelta{
				UserID: userID, Phone: c.Phone, Type: models.DeltaNew,
				NewValue: c.Name, CreatedAt: now,
			})
			continue
		}
		for _, field := range diffedFields {
			oldVal, newVal := fieldValue(prev, field), fieldValue(c, field)
			if oldVal != newVal {
				deltas = append(deltas, &models.SyncDelta{
					UserID: userID, Phone: c.Phone, Field: field,
					OldValue: oldVal, NewValue: newVal,
					Type: models.DeltaUpdate, CreatedAt: now,
				})
			}
		}
	}

	removed := make([]string, 0)
	for key := range old {
		if _, still := fresh[key]; !still {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		prev := old[key]
		deltas = append(deltas, &models.SyncDelta{
			UserID: userID, Phone: prev.Phone, Type: models.DeltaDelete,
			OldValue: prev.Name, CreatedAt: now,
		})
	}

	if err := s.store.ReplaceDeltas(ctx, userID, deltas); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "delta replacement failed")
	}
	if err := s.store.SaveSnapshot(ctx, &models.SyncSnapshot{
		UserID: userID, Contacts: imported, ImportedAt: now,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot persist failed")
	}
	s.logger.Info("sync deltas computed",
		"userId", userID.String(), "imported", len(imported), "deltas", len(deltas))
	return deltas, nil
}

// ListUnresolvedDeltas returns the deltas from the most recent import.
func (s *Service) ListUnresolvedDeltas(ctx context.Context, userID id.UserID) ([]*models.SyncDelta, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	deltas, err := s.store.ListUnresolvedDeltas(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "delta listing failed")
	}
	return deltas, nil
}

func fieldValue(c models.SyncContact, field string) string {
	switch field {
	case "name":
		return c.Name
	case "email":
		return c.Email
	case "company":
		return c.Company
	}
	return ""
}
