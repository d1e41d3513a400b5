package models

import (
	"time"

	id "ripple/pkg/domain"
)

// ContactEdge is a directed interaction edge between persons. Unique per ordered
// pair; every call, message, or import upserts it with Weight += 1.
type ContactEdge struct {
	From            id.PersonID `json:"from"`
	To              id.PersonID `json:"to"`
	Weight          int         `json:"weight"`
	LastContactedAt time.Time   `json:"lastContactedAt"`
}

// TrustEdge is a directed explicit trust assertion, separate from interaction
// history. Consumed only by the scoring engine.
type TrustEdge struct {
	From      id.PersonID `json:"from"`
	To        id.PersonID `json:"to"`
	Confirmed bool        `json:"confirmed"`
	Level     int         `json:"level"`
	CreatedAt time.Time   `json:"createdAt"`
}

// InteractionKind distinguishes calls from messages in the interaction log.
type InteractionKind string

const (
	InteractionCall    InteractionKind = "call"
	InteractionMessage InteractionKind = "message"
)

// CallLog is one raw interaction record. The scoring windows (30/90 days) are
// computed from these, and merges reassign them to the surviving person.
type CallLog struct {
	From     id.PersonID     `json:"from"`
	To       id.PersonID     `json:"to"`
	Kind     InteractionKind `json:"kind"`
	Duration time.Duration   `json:"duration"`
	At       time.Time       `json:"at"`
}
