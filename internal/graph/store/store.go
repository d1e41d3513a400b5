package store

import (
	"context"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
)

// Store is the full graph-store surface. Services depend on narrow slices of
// it; this interface exists so wiring can swap the memory and postgres
// implementations wholesale.
type Store interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	UpdatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindPersonByEmail(ctx context.Context, address string) (*models.Person, error)
	FindPersonByPhone(ctx context.Context, number string) (*models.Person, error)
	ListPersons(ctx context.Context) ([]*models.Person, error)
	DeletePerson(ctx context.Context, personID id.PersonID) error

	UpsertContactEdge(ctx context.Context, from, to id.PersonID, at time.Time) (*models.ContactEdge, error)
	GetContactEdge(ctx context.Context, from, to id.PersonID) (*models.ContactEdge, error)
	ContactEdgeEitherDirection(ctx context.Context, a, b id.PersonID) (bool, error)
	ListContactEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.ContactEdge, error)
	ListContactEdgesTo(ctx context.Context, to id.PersonID) ([]*models.ContactEdge, error)

	UpsertTrustEdge(ctx context.Context, edge *models.TrustEdge) (*models.TrustEdge, error)
	GetTrustEdge(ctx context.Context, from, to id.PersonID) (*models.TrustEdge, error)
	ListTrustEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.TrustEdge, error)
	ListConfirmedTrustEdges(ctx context.Context) ([]*models.TrustEdge, error)

	UpsertAlias(ctx context.Context, alias *models.ContactAlias) error
	GetAlias(ctx context.Context, userID id.UserID, personID id.PersonID) (*models.ContactAlias, error)
	ListAliasesByUser(ctx context.Context, userID id.UserID) ([]*models.ContactAlias, error)

	AddBlock(ctx context.Context, block *models.BlockedContact) error
	RemoveBlock(ctx context.Context, userID id.UserID, personID id.PersonID) error
	IsBlocked(ctx context.Context, userID id.UserID, personID id.PersonID, phoneNumbers []string) (bool, error)

	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequest(ctx context.Context, requestID id.RequestID) (*models.ConnectionRequest, error)
	FindPendingRequest(ctx context.Context, from, to id.PersonID) (*models.ConnectionRequest, error)
	TotalRequestCount(ctx context.Context, from, to id.PersonID) (int, error)
	TransitionRequest(ctx context.Context, requestID id.RequestID, from, to models.RequestStatus, at time.Time) (*models.ConnectionRequest, error)

	CreateEvent(ctx context.Context, event *models.UpdateEvent) error
	GetEvent(ctx context.Context, eventID id.EventID) (*models.UpdateEvent, error)
	ListEventsForPerson(ctx context.Context, personID id.PersonID, state models.EventState) ([]*models.UpdateEvent, error)
	TransitionEvent(ctx context.Context, eventID id.EventID, from, to models.EventState, at time.Time) (*models.UpdateEvent, error)
	ReassignEvents(ctx context.Context, from, to id.PersonID) error

	AppendCallLog(ctx context.Context, log *models.CallLog) error
	ListCallLogsBetween(ctx context.Context, a, b id.PersonID, since time.Time) ([]*models.CallLog, error)
	ReassignCallLogs(ctx context.Context, from, to id.PersonID) error

	GetSnapshot(ctx context.Context, userID id.UserID) (*models.SyncSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *models.SyncSnapshot) error
	ReplaceDeltas(ctx context.Context, userID id.UserID, deltas []*models.SyncDelta) error
	ListUnresolvedDeltas(ctx context.Context, userID id.UserID) ([]*models.SyncDelta, error)
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
