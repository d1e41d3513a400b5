package store

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ripple/internal/graph/models"
	id "ripple/pkg/domain"
	"ripple/pkg/phone"
	"ripple/pkg/platform/sentinel"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the production graph store. Upserts go through ON CONFLICT so
// concurrent writers cannot duplicate edges or aliases; conditional transitions
// are single UPDATE ... WHERE status = $expected statements.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the embedded schema. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply graph schema: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Persons
// -----------------------------------------------------------------------------

func (s *Postgres) CreatePerson(ctx context.Context, p *models.Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create person: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPersonRow(ctx, tx, p); err != nil {
		return err
	}
	if err := insertContactFields(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create person: %w", err)
	}
	return nil
}

func insertPersonRow(ctx context.Context, tx *sql.Tx, p *models.Person) error {
	addresses, handles, tags, err := marshalPersonJSON(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO persons (id, registered_user_id, company, job_title, birthday,
		                     addresses, handles, tags, trust_score, trust_score_at,
		                     created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(p.ID), nullableUserID(p.RegisteredUserID), p.Company, p.JobTitle,
		p.Birthday, addresses, handles, tags, p.TrustScore, p.TrustScoreAt,
		p.CreatedAt, p.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func insertContactFields(ctx context.Context, tx *sql.Tx, p *models.Person) error {
	for _, ph := range p.Phones {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO person_phones (person_id, label, raw, e164)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (person_id, e164) DO NOTHING`,
			uuid.UUID(p.ID), ph.Label, ph.Raw, ph.E164,
		); err != nil {
			return fmt.Errorf("insert person phone: %w", err)
		}
	}
	for _, em := range p.Emails {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO person_emails (person_id, label, address)
			VALUES ($1, $2, $3)
			ON CONFLICT (person_id, address) DO NOTHING`,
			uuid.UUID(p.ID), em.Label, em.Address,
		); err != nil {
			return fmt.Errorf("insert person email: %w", err)
		}
	}
	return nil
}

// UpdatePerson rewrites the person row and its phone/email side tables in one
// transaction. Fields are additive at the service layer; the store persists
// whatever it is handed.
func (s *Postgres) UpdatePerson(ctx context.Context, p *models.Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update person: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	addresses, handles, tags, err := marshalPersonJSON(p)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE persons
		SET registered_user_id = $2, company = $3, job_title = $4, birthday = $5,
		    addresses = $6, handles = $7, tags = $8, trust_score = $9,
		    trust_score_at = $10, updated_at = $11
		WHERE id = $1`,
		uuid.UUID(p.ID), nullableUserID(p.RegisteredUserID), p.Company, p.JobTitle,
		p.Birthday, addresses, handles, tags, p.TrustScore, p.TrustScoreAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM person_phones WHERE person_id = $1`, uuid.UUID(p.ID)); err != nil {
		return fmt.Errorf("clear person phones: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM person_emails WHERE person_id = $1`, uuid.UUID(p.ID)); err != nil {
		return fmt.Errorf("clear person emails: %w", err)
	}
	if err := insertContactFields(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update person: %w", err)
	}
	return nil
}

func (s *Postgres) GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	return s.queryPerson(ctx, `WHERE p.id = $1`, uuid.UUID(personID))
}

func (s *Postgres) FindPersonByEmail(ctx context.Context, address string) (*models.Person, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	return s.queryPerson(ctx, `
		WHERE p.id = (
			SELECT pe.person_id FROM person_emails pe
			JOIN persons pp ON pp.id = pe.person_id
			WHERE pe.address = $1
			ORDER BY pp.created_at, pp.id LIMIT 1
		)`, address)
}

func (s *Postgres) FindPersonByPhone(ctx context.Context, number string) (*models.Person, error) {
	return s.queryPerson(ctx, `
		WHERE p.id = (
			SELECT pp2.person_id FROM person_phones pp2
			JOIN persons pp ON pp.id = pp2.person_id
			WHERE pp2.e164 = $1 OR pp2.raw = $1
			ORDER BY pp.created_at, pp.id LIMIT 1
		)`, number)
}

func (s *Postgres) ListPersons(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, personSelect+` ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	for _, p := range out {
		if err := s.loadContactFields(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Postgres) DeletePerson(ctx context.Context, personID id.PersonID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete person: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, uuid.UUID(personID))
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	for _, stmt := range []string{
		`DELETE FROM contact_edges WHERE from_person = $1 OR to_person = $1`,
		`DELETE FROM trust_edges WHERE from_person = $1 OR to_person = $1`,
		`DELETE FROM contact_aliases WHERE person_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, uuid.UUID(personID)); err != nil {
			return fmt.Errorf("cascade delete person: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete person: %w", err)
	}
	return nil
}

const personSelect = `
	SELECT p.id, p.registered_user_id, p.company, p.job_title, p.birthday,
	       p.addresses, p.handles, p.tags, p.trust_score, p.trust_score_at,
	       p.created_at, p.updated_at
	FROM persons p`

func (s *Postgres) queryPerson(ctx context.Context, where string, arg any) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx, personSelect+" "+where, arg)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadContactFields(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p          models.Person
		personUUID uuid.UUID
		regUserID  uuid.NullUUID
		addresses  []byte
		handles    []byte
		tags       []byte
	)
	err := row.Scan(&personUUID, &regUserID, &p.Company, &p.JobTitle, &p.Birthday,
		&addresses, &handles, &tags, &p.TrustScore, &p.TrustScoreAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.ID = id.PersonID(personUUID)
	if regUserID.Valid {
		uid := id.UserID(regUserID.UUID)
		p.RegisteredUserID = &uid
	}
	if err := json.Unmarshal(addresses, &p.Addresses); err != nil {
		return nil, fmt.Errorf("decode person addresses: %w", err)
	}
	if err := json.Unmarshal(handles, &p.Handles); err != nil {
		return nil, fmt.Errorf("decode person handles: %w", err)
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode person tags: %w", err)
	}
	return &p, nil
}

func (s *Postgres) loadContactFields(ctx context.Context, p *models.Person) error {
	phoneRows, err := s.db.QueryContext(ctx,
		`SELECT label, raw, e164 FROM person_phones WHERE person_id = $1 ORDER BY e164`,
		uuid.UUID(p.ID))
	if err != nil {
		return fmt.Errorf("load person phones: %w", err)
	}
	defer phoneRows.Close()
	for phoneRows.Next() {
		var ph models.Phone
		if err := phoneRows.Scan(&ph.Label, &ph.Raw, &ph.E164); err != nil {
			return fmt.Errorf("scan person phone: %w", err)
		}
		p.Phones = append(p.Phones, ph)
	}
	if err := phoneRows.Err(); err != nil {
		return fmt.Errorf("load person phones: %w", err)
	}

	emailRows, err := s.db.QueryContext(ctx,
		`SELECT label, address FROM person_emails WHERE person_id = $1 ORDER BY address`,
		uuid.UUID(p.ID))
	if err != nil {
		return fmt.Errorf("load person emails: %w", err)
	}
	defer emailRows.Close()
	for emailRows.Next() {
		var em models.Email
		if err := emailRows.Scan(&em.Label, &em.Address); err != nil {
			return fmt.Errorf("scan person email: %w", err)
		}
		p.Emails = append(p.Emails, em)
	}
	return emailRows.Err()
}

func marshalPersonJSON(p *models.Person) (addresses, handles, tags []byte, err error) {
	if addresses, err = json.Marshal(orEmptySlice(p.Addresses)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode person addresses: %w", err)
	}
	h := p.Handles
	if h == nil {
		h = map[string]string{}
	}
	if handles, err = json.Marshal(h); err != nil {
		return nil, nil, nil, fmt.Errorf("encode person handles: %w", err)
	}
	if tags, err = json.Marshal(orEmptySlice(p.Tags)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode person tags: %w", err)
	}
	return addresses, handles, tags, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableUserID(uid *id.UserID) uuid.NullUUID {
	if uid == nil || uid.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*uid), Valid: true}
}

// -----------------------------------------------------------------------------
// Contact edges
// -----------------------------------------------------------------------------

func (s *Postgres) UpsertContactEdge(ctx context.Context, from, to id.PersonID, at time.Time) (*models.ContactEdge, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contact_edges (from_person, to_person, weight, last_contacted_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (from_person, to_person)
		DO UPDATE SET weight = contact_edges.weight + 1, last_contacted_at = $3
		RETURNING weight, last_contacted_at`,
		uuid.UUID(from), uuid.UUID(to), at)
	edge := &models.ContactEdge{From: from, To: to}
	if err := row.Scan(&edge.Weight, &edge.LastContactedAt); err != nil {
		return nil, fmt.Errorf("upsert contact edge: %w", err)
	}
	return edge, nil
}

func (s *Postgres) GetContactEdge(ctx context.Context, from, to id.PersonID) (*models.ContactEdge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT weight, last_contacted_at FROM contact_edges
		WHERE from_person = $1 AND to_person = $2`,
		uuid.UUID(from), uuid.UUID(to))
	edge := &models.ContactEdge{From: from, To: to}
	if err := row.Scan(&edge.Weight, &edge.LastContactedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get contact edge: %w", err)
	}
	return edge, nil
}

func (s *Postgres) ContactEdgeEitherDirection(ctx context.Context, a, b id.PersonID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM contact_edges
			WHERE (from_person = $1 AND to_person = $2)
			   OR (from_person = $2 AND to_person = $1)
		)`, uuid.UUID(a), uuid.UUID(b)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("contact edge either direction: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListContactEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.ContactEdge, error) {
	return s.listContactEdges(ctx,
		`SELECT from_person, to_person, weight, last_contacted_at FROM contact_edges
		 WHERE from_person = $1 ORDER BY to_person`, uuid.UUID(from))
}

func (s *Postgres) ListContactEdgesTo(ctx context.Context, to id.PersonID) ([]*models.ContactEdge, error) {
	return s.listContactEdges(ctx,
		`SELECT from_person, to_person, weight, last_contacted_at FROM contact_edges
		 WHERE to_person = $1 ORDER BY from_person`, uuid.UUID(to))
}

func (s *Postgres) listContactEdges(ctx context.Context, query string, arg any) ([]*models.ContactEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list contact edges: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactEdge
	for rows.Next() {
		var (
			edge     models.ContactEdge
			fromUUID uuid.UUID
			toUUID   uuid.UUID
		)
		if err := rows.Scan(&fromUUID, &toUUID, &edge.Weight, &edge.LastContactedAt); err != nil {
			return nil, fmt.Errorf("scan contact edge: %w", err)
		}
		edge.From = id.PersonID(fromUUID)
		edge.To = id.PersonID(toUUID)
		out = append(out, &edge)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Trust edges
// -----------------------------------------------------------------------------

func (s *Postgres) UpsertTrustEdge(ctx context.Context, edge *models.TrustEdge) (*models.TrustEdge, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO trust_edges (from_person, to_person, confirmed, level, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (from_person, to_person)
		DO UPDATE SET confirmed = $3, level = $4
		RETURNING created_at`,
		uuid.UUID(edge.From), uuid.UUID(edge.To), edge.Confirmed, edge.Level, edge.CreatedAt)
	out := *edge
	if err := row.Scan(&out.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert trust edge: %w", err)
	}
	return &out, nil
}

func (s *Postgres) GetTrustEdge(ctx context.Context, from, to id.PersonID) (*models.TrustEdge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT confirmed, level, created_at FROM trust_edges
		WHERE from_person = $1 AND to_person = $2`,
		uuid.UUID(from), uuid.UUID(to))
	edge := &models.TrustEdge{From: from, To: to}
	if err := row.Scan(&edge.Confirmed, &edge.Level, &edge.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get trust edge: %w", err)
	}
	return edge, nil
}

func (s *Postgres) ListTrustEdgesFrom(ctx context.Context, from id.PersonID) ([]*models.TrustEdge, error) {
	return s.listTrustEdges(ctx, `
		SELECT from_person, to_person, confirmed, level, created_at FROM trust_edges
		WHERE from_person = $1 ORDER BY to_person`, uuid.UUID(from))
}

func (s *Postgres) ListConfirmedTrustEdges(ctx context.Context) ([]*models.TrustEdge, error) {
	return s.listTrustEdges(ctx, `
		SELECT from_person, to_person, confirmed, level, created_at FROM trust_edges
		WHERE confirmed ORDER BY from_person, to_person`)
}

func (s *Postgres) listTrustEdges(ctx context.Context, query string, args ...any) ([]*models.TrustEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trust edges: %w", err)
	}
	defer rows.Close()

	var out []*models.TrustEdge
	for rows.Next() {
		var (
			edge     models.TrustEdge
			fromUUID uuid.UUID
			toUUID   uuid.UUID
		)
		if err := rows.Scan(&fromUUID, &toUUID, &edge.Confirmed, &edge.Level, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trust edge: %w", err)
		}
		edge.From = id.PersonID(fromUUID)
		edge.To = id.PersonID(toUUID)
		out = append(out, &edge)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Aliases
// -----------------------------------------------------------------------------

func (s *Postgres) UpsertAlias(ctx context.Context, alias *models.ContactAlias) error {
	tags, err := json.Marshal(orEmptySlice(alias.Tags))
	if err != nil {
		return fmt.Errorf("encode alias tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contact_aliases (user_id, person_id, alias, tags, notes, last_contacted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, person_id)
		DO UPDATE SET alias = $3, tags = $4, notes = $5, last_contacted_at = $6`,
		uuid.UUID(alias.UserID), uuid.UUID(alias.PersonID), alias.Alias, tags,
		alias.Notes, alias.LastContactedAt)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}

func (s *Postgres) GetAlias(ctx context.Context, userID id.UserID, personID id.PersonID) (*models.ContactAlias, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT alias, tags, notes, last_contacted_at FROM contact_aliases
		WHERE user_id = $1 AND person_id = $2`,
		uuid.UUID(userID), uuid.UUID(personID))
	alias := &models.ContactAlias{UserID: userID, PersonID: personID}
	var tags []byte
	if err := row.Scan(&alias.Alias, &tags, &alias.Notes, &alias.LastContactedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get alias: %w", err)
	}
	if err := json.Unmarshal(tags, &alias.Tags); err != nil {
		return nil, fmt.Errorf("decode alias tags: %w", err)
	}
	return alias, nil
}

func (s *Postgres) ListAliasesByUser(ctx context.Context, userID id.UserID) ([]*models.ContactAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, alias, tags, notes, last_contacted_at FROM contact_aliases
		WHERE user_id = $1 ORDER BY person_id`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactAlias
	for rows.Next() {
		alias := &models.ContactAlias{UserID: userID}
		var (
			personUUID uuid.UUID
			tags       []byte
		)
		if err := rows.Scan(&personUUID, &alias.Alias, &tags, &alias.Notes, &alias.LastContactedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		alias.PersonID = id.PersonID(personUUID)
		if err := json.Unmarshal(tags, &alias.Tags); err != nil {
			return nil, fmt.Errorf("decode alias tags: %w", err)
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Blocks
// -----------------------------------------------------------------------------

func (s *Postgres) AddBlock(ctx context.Context, block *models.BlockedContact) error {
	var personID uuid.NullUUID
	if block.PersonID != nil {
		personID = uuid.NullUUID{UUID: uuid.UUID(*block.PersonID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_contacts (user_id, person_id, phone_number, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(block.UserID), personID, block.PhoneNumber, block.Reason, block.CreatedAt)
	if err != nil {
		return fmt.Errorf("add block: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveBlock(ctx context.Context, userID id.UserID, personID id.PersonID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM blocked_contacts WHERE user_id = $1 AND person_id = $2`,
		uuid.UUID(userID), uuid.UUID(personID))
	if err != nil {
		return fmt.Errorf("remove block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) IsBlocked(ctx context.Context, userID id.UserID, personID id.PersonID, phoneNumbers []string) (bool, error) {
	digits := make([]string, 0, len(phoneNumbers))
	for _, num := range phoneNumbers {
		if d := phone.Digits(num); d != "" {
			digits = append(digits, d)
		}
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_contacts
			WHERE user_id = $1
			  AND (person_id = $2
			       OR (phone_number <> '' AND regexp_replace(phone_number, '\D', '', 'g') = ANY($3)))
		)`, uuid.UUID(userID), uuid.UUID(personID), pq.Array(digits)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}

// -----------------------------------------------------------------------------
// Connection requests
// -----------------------------------------------------------------------------

func (s *Postgres) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connection_requests (id, from_person, to_person, status, message, request_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(req.ID), uuid.UUID(req.From), uuid.UUID(req.To), string(req.Status),
		req.Message, req.RequestCount, req.CreatedAt, req.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *Postgres) GetRequest(ctx context.Context, requestID id.RequestID) (*models.ConnectionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, from_person, to_person, status, message, request_count, created_at, updated_at
		FROM connection_requests WHERE id = $1`, uuid.UUID(requestID))
	return scanRequest(row)
}

func (s *Postgres) FindPendingRequest(ctx context.Context, from, to id.PersonID) (*models.ConnectionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, from_person, to_person, status, message, request_count, created_at, updated_at
		FROM connection_requests
		WHERE from_person = $1 AND to_person = $2 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`,
		uuid.UUID(from), uuid.UUID(to))
	return scanRequest(row)
}

func (s *Postgres) TotalRequestCount(ctx context.Context, from, to id.PersonID) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(request_count), 0) FROM connection_requests
		WHERE from_person = $1 AND to_person = $2`,
		uuid.UUID(from), uuid.UUID(to)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total request count: %w", err)
	}
	return total, nil
}

// TransitionRequest is the atomic conditional status update guarding against
// duplicate concurrent approvals.
func (s *Postgres) TransitionRequest(ctx context.Context, requestID id.RequestID, from, to models.RequestStatus, at time.Time) (*models.ConnectionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE connection_requests
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING id, from_person, to_person, status, message, request_count, created_at, updated_at`,
		uuid.UUID(requestID), string(from), string(to), at)
	req, err := scanRequest(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Distinguish missing from wrong-state for the caller.
		if _, getErr := s.GetRequest(ctx, requestID); getErr == nil {
			return nil, sentinel.ErrInvalidState
		}
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func scanRequest(row rowScanner) (*models.ConnectionRequest, error) {
	var (
		req      models.ConnectionRequest
		reqUUID  uuid.UUID
		fromUUID uuid.UUID
		toUUID   uuid.UUID
		status   string
	)
	err := row.Scan(&reqUUID, &fromUUID, &toUUID, &status, &req.Message,
		&req.RequestCount, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	req.ID = id.RequestID(reqUUID)
	req.From = id.PersonID(fromUUID)
	req.To = id.PersonID(toUUID)
	req.Status = models.RequestStatus(status)
	return &req, nil
}

// -----------------------------------------------------------------------------
// Update events
// -----------------------------------------------------------------------------

func (s *Postgres) CreateEvent(ctx context.Context, event *models.UpdateEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO update_events (id, person_id, from_user_id, field, old_value, new_value, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(event.ID), uuid.UUID(event.PersonID), uuid.UUID(event.FromUserID),
		event.Field, event.OldValue, event.NewValue, string(event.State), event.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Postgres) GetEvent(ctx context.Context, eventID id.EventID) (*models.UpdateEvent, error) {
	row := s.db.QueryRowContext(ctx, eventSelect+` WHERE id = $1`, uuid.UUID(eventID))
	return scanEvent(row)
}

func (s *Postgres) ListEventsForPerson(ctx context.Context, personID id.PersonID, state models.EventState) ([]*models.UpdateEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		eventSelect+` WHERE person_id = $1 AND state = $2 ORDER BY created_at`,
		uuid.UUID(personID), string(state))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*models.UpdateEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *Postgres) TransitionEvent(ctx context.Context, eventID id.EventID, from, to models.EventState, at time.Time) (*models.UpdateEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE update_events
		SET state = $3, resolved_at = $4
		WHERE id = $1 AND state = $2
		RETURNING id, person_id, from_user_id, field, old_value, new_value, state, created_at, resolved_at`,
		uuid.UUID(eventID), string(from), string(to), at)
	event, err := scanEvent(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		if _, getErr := s.GetEvent(ctx, eventID); getErr == nil {
			return nil, sentinel.ErrInvalidState
		}
		return nil, sentinel.ErrNotFound
	}
	return event, err
}

func (s *Postgres) ReassignEvents(ctx context.Context, from, to id.PersonID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE update_events SET person_id = $2 WHERE person_id = $1`,
		uuid.UUID(from), uuid.UUID(to))
	if err != nil {
		return fmt.Errorf("reassign events: %w", err)
	}
	return nil
}

const eventSelect = `
	SELECT id, person_id, from_user_id, field, old_value, new_value, state, created_at, resolved_at
	FROM update_events`

func scanEvent(row rowScanner) (*models.UpdateEvent, error) {
	var (
		event      models.UpdateEvent
		eventUUID  uuid.UUID
		personUUID uuid.UUID
		userUUID   uuid.UUID
		state      string
		resolvedAt sql.NullTime
	)
	err := row.Scan(&eventUUID, &personUUID, &userUUID, &event.Field, &event.OldValue,
		&event.NewValue, &state, &event.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.ID = id.EventID(eventUUID)
	event.PersonID = id.PersonID(personUUID)
	event.FromUserID = id.UserID(userUUID)
	event.State = models.EventState(state)
	if resolvedAt.Valid {
		event.ResolvedAt = &resolvedAt.Time
	}
	return &event, nil
}

// -----------------------------------------------------------------------------
// Call logs
// -----------------------------------------------------------------------------

func (s *Postgres) AppendCallLog(ctx context.Context, log *models.CallLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (from_person, to_person, kind, duration_seconds, at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(log.From), uuid.UUID(log.To), string(log.Kind),
		int64(log.Duration.Seconds()), log.At)
	if err != nil {
		return fmt.Errorf("append call log: %w", err)
	}
	return nil
}

func (s *Postgres) ListCallLogsBetween(ctx context.Context, a, b id.PersonID, since time.Time) ([]*models.CallLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_person, to_person, kind, duration_seconds, at FROM call_logs
		WHERE at >= $3
		  AND ((from_person = $1 AND to_person = $2) OR (from_person = $2 AND to_person = $1))
		ORDER BY at`,
		uuid.UUID(a), uuid.UUID(b), since)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	defer rows.Close()

	var out []*models.CallLog
	for rows.Next() {
		var (
			log      models.CallLog
			fromUUID uuid.UUID
			toUUID   uuid.UUID
			kind     string
			seconds  int64
		)
		if err := rows.Scan(&fromUUID, &toUUID, &kind, &seconds, &log.At); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		log.From = id.PersonID(fromUUID)
		log.To = id.PersonID(toUUID)
		log.Kind = models.InteractionKind(kind)
		log.Duration = time.Duration(seconds) * time.Second
		out = append(out, &log)
	}
	return out, rows.Err()
}

func (s *Postgres) ReassignCallLogs(ctx context.Context, from, to id.PersonID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reassign call logs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE call_logs SET from_person = $2 WHERE from_person = $1`,
		uuid.UUID(from), uuid.UUID(to)); err != nil {
		return fmt.Errorf("reassign call log senders: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE call_logs SET to_person = $2 WHERE to_person = $1`,
		uuid.UUID(from), uuid.UUID(to)); err != nil {
		return fmt.Errorf("reassign call log receivers: %w", err)
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------
// Sync snapshots and deltas
// -----------------------------------------------------------------------------

func (s *Postgres) GetSnapshot(ctx context.Context, userID id.UserID) (*models.SyncSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT contacts, imported_at FROM sync_snapshots WHERE user_id = $1`,
		uuid.UUID(userID))
	snap := &models.SyncSnapshot{UserID: userID}
	var contacts []byte
	if err := row.Scan(&contacts, &snap.ImportedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(contacts, &snap.Contacts); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *Postgres) SaveSnapshot(ctx context.Context, snap *models.SyncSnapshot) error {
	contacts, err := json.Marshal(snap.Contacts)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_snapshots (user_id, contacts, imported_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET contacts = $2, imported_at = $3`,
		uuid.UUID(snap.UserID), contacts, snap.ImportedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ReplaceDeltas resolves previously unresolved deltas and inserts the fresh
// batch in one transaction, so the new batch is never swept by the resolve pass.
func (s *Postgres) ReplaceDeltas(ctx context.Context, userID id.UserID, deltas []*models.SyncDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace deltas: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_deltas SET resolved = TRUE WHERE user_id = $1 AND NOT resolved`,
		uuid.UUID(userID)); err != nil {
		return fmt.Errorf("resolve previous deltas: %w", err)
	}
	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_deltas (user_id, phone, field, old_value, new_value, type, resolved, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
			uuid.UUID(userID), d.Phone, d.Field, d.OldValue, d.NewValue,
			string(d.Type), d.CreatedAt); err != nil {
			return fmt.Errorf("insert delta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace deltas: %w", err)
	}
	return nil
}

func (s *Postgres) ListUnresolvedDeltas(ctx context.Context, userID id.UserID) ([]*models.SyncDelta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, field, old_value, new_value, type, resolved, created_at
		FROM sync_deltas WHERE user_id = $1 AND NOT resolved ORDER BY id`,
		uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list unresolved deltas: %w", err)
	}
	defer rows.Close()

	var out []*models.SyncDelta
	for rows.Next() {
		d := &models.SyncDelta{UserID: userID}
		var deltaType string
		if err := rows.Scan(&d.ID, &d.Phone, &d.Field, &d.OldValue, &d.NewValue,
			&deltaType, &d.Resolved, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		d.Type = models.DeltaType(deltaType)
		out = append(out, d)
	}
	return out, rows.Err()
}
