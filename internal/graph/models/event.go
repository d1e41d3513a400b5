package models

import (
	"time"

	id "ripple/pkg/domain"
)

// EventState is the explicit update-event state machine. It replaces the
// stealth/applied boolean pair: a sender in stealth mode produces Hidden events
// that are never listed to connections; a normal sender produces PendingApproval
// events that first-level connections may apply or ignore.
type EventState string

const (
	// EventHidden suppresses the event from discovery. Created when the sender
	// has stealth mode enabled.
	EventHidden EventState = "hidden"
	// EventPendingApproval is visible to the subject's first-level connections.
	EventPendingApproval EventState = "pending_approval"
	// EventApplied means an approver accepted the change and it was written
	// onto the person.
	EventApplied EventState = "applied"
	// EventIgnored means an approver dismissed the change without mutation.
	EventIgnored EventState = "ignored"
)

// Terminal reports whether the state admits no further transitions. Events are
// idempotent per id: re-applying a terminal event is rejected, not re-executed.
func (s EventState) Terminal() bool {
	return s == EventApplied || s == EventIgnored
}

// UpdateEvent is a proposed change to a non-registered person's data, consumed
// by a first-level connection's apply/ignore action.
type UpdateEvent struct {
	ID         id.EventID  `json:"id"`
	PersonID   id.PersonID `json:"personId"`
	FromUserID id.UserID   `json:"fromUserId"`
	Field      string      `json:"field"`
	OldValue   string      `json:"oldValue"`
	NewValue   string      `json:"newValue"`
	State      EventState  `json:"state"`
	CreatedAt  time.Time   `json:"createdAt"`
	ResolvedAt *time.Time  `json:"resolvedAt,omitempty"`
}
