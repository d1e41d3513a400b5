package models

import (
	"time"

	id "ripple/pkg/domain"
)

// ContactAlias is a per-viewer display binding: the name, tags, and notes one
// user keeps for a person, independent of the person's own fields. Unique per
// (UserID, PersonID) pair.
type ContactAlias struct {
	UserID          id.UserID   `json:"userId"`
	PersonID        id.PersonID `json:"personId"`
	Alias           string      `json:"alias"`
	Tags            []string    `json:"tags,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	LastContactedAt time.Time   `json:"lastContactedAt"`
}

// BlockedContact suppresses future connection requests and search visibility.
// Either PersonID or PhoneNumber identifies the blocked party.
type BlockedContact struct {
	UserID      id.UserID    `json:"userId"`
	PersonID    *id.PersonID `json:"personId,omitempty"`
	PhoneNumber string       `json:"phoneNumber,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}
