// Package domain holds typed identifiers shared across the engine.
//
// IDs are distinct named UUID types so the compiler rejects a PersonID where a
// UserID is expected. Parse functions enforce the invariant that IDs are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "ripple/pkg/domain-errors"
)

// PersonID identifies a canonical identity node in the graph.
type PersonID uuid.UUID

// UserID identifies an authenticated account (a registered user).
type UserID uuid.UUID

// EventID identifies a proposed update event.
type EventID uuid.UUID

// RequestID identifies a connection request.
type RequestID uuid.UUID

func (id PersonID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string   { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }

func (id PersonID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Named types do not inherit uuid.UUID's text marshaling, so each ID carries
// its own. JSON renders IDs as canonical UUID strings, including as map keys.

func (id PersonID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PersonID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewPersonID returns a fresh random PersonID.
func NewPersonID() PersonID { return PersonID(uuid.New()) }

// NewEventID returns a fresh random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// ParsePersonID validates and returns a PersonID.
func ParsePersonID(s string) (PersonID, error) {
	u, err := parse(s)
	return PersonID(u), err
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s)
	return UserID(u), err
}

// ParseEventID validates and returns an EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := parse(s)
	return EventID(u), err
}

// ParseRequestID validates and returns a RequestID.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parse(s)
	return RequestID(u), err
}

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid id: %s", s)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "nil id")
	}
	return u, nil
}
