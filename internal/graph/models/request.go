package models

import (
	"time"

	id "ripple/pkg/domain"
)

// RequestStatus is the connection-request state machine.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// MaxRequestCount caps cumulative requests for an ordered pair across all prior
// attempts. After a rejection one re-request is permitted; the third attempt is
// refused.
const MaxRequestCount = 2

// ConnectionRequest asks the recipient to connect. Approval creates
// bidirectional contact edges and an alias for the requester; rejection permits
// one re-request.
type ConnectionRequest struct {
	ID           id.RequestID  `json:"id"`
	From         id.PersonID   `json:"from"`
	To           id.PersonID   `json:"to"`
	Status       RequestStatus `json:"status"`
	Message      string        `json:"message,omitempty"`
	RequestCount int           `json:"requestCount"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}
