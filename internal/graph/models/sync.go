package models

import (
	"time"

	id "ripple/pkg/domain"
)

// SyncContact is one entry of an imported contact list, keyed by phone.
type SyncContact struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// SyncSnapshot is the last-imported contact list for a user.
type SyncSnapshot struct {
	UserID     id.UserID     `json:"userId"`
	Contacts   []SyncContact `json:"contacts"`
	ImportedAt time.Time     `json:"importedAt"`
}

// DeltaType classifies a sync delta.
type DeltaType string

const (
	DeltaNew    DeltaType = "new"
	DeltaUpdate DeltaType = "update"
	DeltaDelete DeltaType = "delete"
)

// SyncDelta is one difference between a new import and the previous snapshot.
// Unresolved deltas are presented to the user; a later import resolves them.
type SyncDelta struct {
	ID        int64     `json:"id"`
	UserID    id.UserID `json:"userId"`
	Phone     string    `json:"phone"`
	Field     string    `json:"field,omitempty"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	Type      DeltaType `json:"type"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}
