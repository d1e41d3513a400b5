package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	"ripple/pkg/phone"
	"ripple/pkg/platform/sentinel"
)

// Memory is the in-memory graph store. It backs unit tests and local
// development; the postgres store is its production twin. A single mutex guards
// all maps, which also gives the atomic upsert and conditional-transition
// semantics the services rely on.
type Memory struct {
	mu sync.RWMutex

	persons      map[id.PersonID]*models.Person
	contactEdges map[pairKey]*models.ContactEdge
	trustEdges   map[pairKey]*models.TrustEdge
	aliases      map[aliasKey]*models.ContactAlias
	blocks       map[id.UserID][]*models.BlockedContact
	requests     map[id.RequestID]*models.ConnectionRequest
	events       map[id.EventID]*models.UpdateEvent
	callLogs     []*models.CallLog
	snapshots    map[id.UserID]*models.SyncSnapshot
	deltas       []*models.SyncDelta
	nextDeltaID  int64
}

type pairKey struct {
	from id.PersonID
	to   id.PersonID
}

type aliasKey struct {
	user   id.UserID
	person id.PersonID
}

// NewMemory constructs an empty in-memory graph store.
func NewMemory() *Memory {
	return &Memory{
		persons:      make(map[id.PersonID]*models.Person),
		contactEdges: make(map[pairKey]*models.ContactEdge),
		trustEdges:   make(map[pairKey]*models.TrustEdge),
		aliases:      make(map[aliasKey]*models.ContactAlias),
		blocks:       make(map[id.UserID][]*models.BlockedContact),
		requests:     make(map[id.RequestID]*models.ConnectionRequest),
		events:       make(map[id.EventID]*models.UpdateEvent),
		snapshots:    make(map[id.UserID]*models.SyncSnapshot),
		nextDeltaID:  1,
	}
}

// -----------------------------------------------------------------------------
// Persons
// -----------------------------------------------------------------------------

func (s *Memory) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := clonePerson(p)
	s.persons[p.ID] = cp
	return nil
}

func (s *Memory) UpdatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.persons[p.ID] = clonePerson(p)
	return nil
}

func (s *Memory) GetPerson(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePerson(p), nil
}

func (s *Memory) FindPersonByEmail(_ context.Context, address string) (*models.Person, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.sortedPersons() {
		if p.HasEmail(address) {
			return clonePerson(p), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindPersonByPhone matches the E.164 or the raw form of any stored phone.
func (s *Memory) FindPersonByPhone(_ context.Context, number string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.sortedPersons() {
		if p.HasPhone(number) {
			return clonePerson(p), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) ListPersons(_ context.Context) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(s.persons))
	for _, p := range s.sortedPersons() {
		out = append(out, clonePerson(p))
	}
	return out, nil
}

// DeletePerson removes the person and cascades to edges and aliases referencing
// it. Events and call logs are not cascaded; merges reassign those explicitly.
func (s *Memory) DeletePerson(_ context.Context, personID id.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[personID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.persons, personID)
	s.deleteContactEdgesFor(personID)
	for key := range s.trustEdges {
		if key.from == personID || key.to == personID {
			delete(s.trustEdges, key)
		}
	}
	for key := range s.aliases {
		if key.person == personID {
			delete(s.aliases, key)
		}
	}
	return nil
}

// sortedPersons returns persons ordered by id so lookups that scan (email,
// phone) behave deterministically. Callers must hold the lock.
func (s *Memory) sortedPersons() []*models.Person {
	out := make([]*models.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt) ||
			(out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID.String() < out[j].ID.String())
	})
	return out
}

// -----------------------------------------------------------------------------
// Contact edges
// -----------------------------------------------------------------------------

// UpsertContactEdge increments the edge weight atomically, creating the edge on
// first contact.
func (s *Memory) UpsertContactEdge(_ context.Context, from, to id.PersonID, at time.Time) (*models.ContactEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{from, to}
	edge, ok := s.contactEdges[key]
	if !ok {
		edge = &models.ContactEdge{From: from, To: to}
		s.contactEdges[key] = edge
	}
	edge.Weight++
	edge.LastContactedAt = at
	cp := *edge
	return &cp, nil
}

func (s *Memory) GetContactEdge(_ context.Context, from, to id.PersonID) (*models.ContactEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.contactEdges[pairKey{from, to}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *edge
	return &cp, nil
}

// ContactEdgeEitherDirection reports whether an edge exists a→b or b→a.
func (s *Memory) ContactEdgeEitherDirection(_ context.Context, a, b id.PersonID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.contactEdges[pairKey{a, b}]; ok {
		return true, nil
	}
	_, ok := s.contactEdges[pairKey{b, a}]
	return ok, nil
}

func (s *Memory) ListContactEdgesFrom(_ context.Context, from id.PersonID) ([]*models.ContactEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ContactEdge
	for key, edge := range s.contactEdges {
		if key.from == from {
			cp := *edge
			out = append(out, &cp)
		}
	}
	sortEdges(out)
	return out, nil
}

func (s *Memory) ListContactEdgesTo(_ context.Context, to id.PersonID) ([]*models.ContactEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ContactEdge
	for key, edge := range s.contactEdges {
		if key.to == to {
			cp := *edge
			out = append(out, &cp)
		}
	}
	sortEdges(out)
	return out, nil
}

func (s *Memory) deleteContactEdgesFor(personID id.PersonID) {
	for key := range s.contactEdges {
		if key.from == personID || key.to == personID {
			delete(s.contactEdges, key)
		}
	}
}

// -----------------------------------------------------------------------------
// Trust edges
// -----------------------------------------------------------------------------

// UpsertTrustEdge is an idempotent upsert keyed on the ordered pair.
func (s *Memory) UpsertTrustEdge(_ context.Context, edge *models.TrustEdge) (*models.TrustEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{edge.From, edge.To}
	existing, ok := s.trustEdges[key]
	if !ok {
		cp := *edge
		s.trustEdges[key] = &cp
		out := cp
		return &out, nil
	}
	existing.Confirmed = edge.Confirmed
	existing.Level = edge.Level
	out := *existing
	return &out, nil
}

func (s *Memory) GetTrustEdge(_ context.Context, from, to id.PersonID) (*models.TrustEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.trustEdges[pairKey{from, to}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *edge
	return &cp, nil
}

func (s *Memory) ListTrustEdgesFrom(_ context.Context, from id.PersonID) ([]*models.TrustEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TrustEdge
	for key, edge := range s.trustEdges {
		if key.from == from {
			cp := *edge
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To.String() < out[j].To.String() })
	return out, nil
}

// ListConfirmedTrustEdges returns the whole confirmed-trust graph for batch
// computations (pagerank, prediction).
func (s *Memory) ListConfirmedTrustEdges(_ context.Context) ([]*models.TrustEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TrustEdge
	for _, edge := range s.trustEdges {
		if edge.Confirmed {
			cp := *edge
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From.String() < out[j].From.String()
		}
		return out[i].To.String() < out[j].To.String()
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Aliases
// -----------------------------------------------------------------------------

func (s *Memory) UpsertAlias(_ context.Context, alias *models.ContactAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alias
	s.aliases[aliasKey{alias.UserID, alias.PersonID}] = &cp
	return nil
}

func (s *Memory) GetAlias(_ context.Context, userID id.UserID, personID id.PersonID) (*models.ContactAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alias, ok := s.aliases[aliasKey{userID, personID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *alias
	return &cp, nil
}

func (s *Memory) ListAliasesByUser(_ context.Context, userID id.UserID) ([]*models.ContactAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ContactAlias
	for key, alias := range s.aliases {
		if key.user == userID {
			cp := *alias
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID.String() < out[j].PersonID.String() })
	return out, nil
}

// -----------------------------------------------------------------------------
// Blocks
// -----------------------------------------------------------------------------

func (s *Memory) AddBlock(_ context.Context, block *models.BlockedContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *block
	s.blocks[block.UserID] = append(s.blocks[block.UserID], &cp)
	return nil
}

func (s *Memory) RemoveBlock(_ context.Context, userID id.UserID, personID id.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.blocks[userID]
	kept := entries[:0]
	removed := false
	for _, b := range entries {
		if b.PersonID != nil && *b.PersonID == personID {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	if !removed {
		return sentinel.ErrNotFound
	}
	s.blocks[userID] = kept
	return nil
}

// IsBlocked checks whether the user blocked the person directly or by any of
// the given phone numbers (digits-only comparison).
func (s *Memory) IsBlocked(_ context.Context, userID id.UserID, personID id.PersonID, phoneNumbers []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.blocks[userID] {
		if b.PersonID != nil && *b.PersonID == personID {
			return true, nil
		}
		if b.PhoneNumber == "" {
			continue
		}
		blocked := phone.Digits(b.PhoneNumber)
		for _, num := range phoneNumbers {
			if blocked == phone.Digits(num) {
				return true, nil
			}
		}
	}
	return false, nil
}

// -----------------------------------------------------------------------------
// Connection requests
// -----------------------------------------------------------------------------

func (s *Memory) CreateRequest(_ context.Context, req *models.ConnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *Memory) GetRequest(_ context.Context, requestID id.RequestID) (*models.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *Memory) FindPendingRequest(_ context.Context, from, to id.PersonID) (*models.ConnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.From == from && req.To == to && req.Status == models.RequestPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// TotalRequestCount sums RequestCount over every request ever made for the
// ordered pair, enforcing the cumulative re-request ceiling.
func (s *Memory) TotalRequestCount(_ context.Context, from, to id.PersonID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, req := range s.requests {
		if req.From == from && req.To == to {
			total += req.RequestCount
		}
	}
	return total, nil
}

// TransitionRequest performs the conditional status transition under the store
// lock, so a duplicate concurrent approval observes ErrInvalidState instead of
// double-creating edges.
func (s *Memory) TransitionRequest(_ context.Context, requestID id.RequestID, from, to models.RequestStatus, at time.Time) (*models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if req.Status != from {
		return nil, sentinel.ErrInvalidState
	}
	req.Status = to
	req.UpdatedAt = at
	cp := *req
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Update events
// -----------------------------------------------------------------------------

func (s *Memory) CreateEvent(_ context.Context, event *models.UpdateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s *Memory) GetEvent(_ context.Context, eventID id.EventID) (*models.UpdateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *event
	return &cp, nil
}

func (s *Memory) ListEventsForPerson(_ context.Context, personID id.PersonID, state models.EventState) ([]*models.UpdateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.UpdateEvent
	for _, event := range s.events {
		if event.PersonID == personID && event.State == state {
			cp := *event
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TransitionEvent moves an event between states conditionally; terminal events
// stay put and the caller observes ErrInvalidState.
func (s *Memory) TransitionEvent(_ context.Context, eventID id.EventID, from, to models.EventState, at time.Time) (*models.UpdateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if event.State != from {
		return nil, sentinel.ErrInvalidState
	}
	event.State = to
	event.ResolvedAt = &at
	cp := *event
	return &cp, nil
}

// ReassignEvents repoints events from a merged-away person to the master.
func (s *Memory) ReassignEvents(_ context.Context, from, to id.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.PersonID == from {
			event.PersonID = to
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Call logs
// -----------------------------------------------------------------------------

func (s *Memory) AppendCallLog(_ context.Context, log *models.CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.callLogs = append(s.callLogs, &cp)
	return nil
}

// ListCallLogsBetween returns interactions between the two persons in either
// direction since the given time.
func (s *Memory) ListCallLogsBetween(_ context.Context, a, b id.PersonID, since time.Time) ([]*models.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CallLog
	for _, log := range s.callLogs {
		if log.At.Before(since) {
			continue
		}
		if (log.From == a && log.To == b) || (log.From == b && log.To == a) {
			cp := *log
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// ReassignCallLogs repoints call logs from a merged-away person to the master.
func (s *Memory) ReassignCallLogs(_ context.Context, from, to id.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, log := range s.callLogs {
		if log.From == from {
			log.From = to
		}
		if log.To == from {
			log.To = to
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Sync snapshots and deltas
// -----------------------------------------------------------------------------

func (s *Memory) GetSnapshot(_ context.Context, userID id.UserID) (*models.SyncSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *snap
	cp.Contacts = append([]models.SyncContact(nil), snap.Contacts...)
	return &cp, nil
}

func (s *Memory) SaveSnapshot(_ context.Context, snap *models.SyncSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	cp.Contacts = append([]models.SyncContact(nil), snap.Contacts...)
	s.snapshots[snap.UserID] = &cp
	return nil
}

// ReplaceDeltas resolves the user's previously unresolved deltas and inserts
// the new batch unresolved, in one critical section. The staging order matters:
// the fresh batch must never be swept up by the resolve pass.
func (s *Memory) ReplaceDeltas(_ context.Context, userID id.UserID, deltas []*models.SyncDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deltas {
		if d.UserID == userID && !d.Resolved {
			d.Resolved = true
		}
	}
	for _, d := range deltas {
		cp := *d
		cp.ID = s.nextDeltaID
		s.nextDeltaID++
		cp.UserID = userID
		cp.Resolved = false
		s.deltas = append(s.deltas, &cp)
	}
	return nil
}

func (s *Memory) ListUnresolvedDeltas(_ context.Context, userID id.UserID) ([]*models.SyncDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SyncDelta
	for _, d := range s.deltas {
		if d.UserID == userID && !d.Resolved {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func sortEdges(edges []*models.ContactEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From.String() < edges[j].From.String()
		}
		return edges[i].To.String() < edges[j].To.String()
	})
}

func clonePerson(p *models.Person) *models.Person {
	cp := *p
	cp.Phones = append([]models.Phone(nil), p.Phones...)
	cp.Emails = append([]models.Email(nil), p.Emails...)
	cp.Addresses = append([]string(nil), p.Addresses...)
	cp.Tags = append([]string(nil), p.Tags...)
	if p.Handles != nil {
		cp.Handles = make(map[string]string, len(p.Handles))
		for k, v := range p.Handles {
			cp.Handles[k] = v
		}
	}
	if p.RegisteredUserID != nil {
		uid := *p.RegisteredUserID
		cp.RegisteredUserID = &uid
	}
	return &cp
}
