// Package repository provides data access for person records.
package repository

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/people/domain"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrPersonNotFound = errors.New("person not found")

// Person is a durable person/lead record. Emails and phones are stored
// normalized; the first element of each set is the display primary, but
// identity matching always considers the whole set.
type Person struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Emails         []string
	Phones         []string
	ClientType     domain.ClientType
	LeadStatus     domain.Status
	LeadSource     string
	AssignedTo     *uuid.UUID
	LastConfidence float64
	NeedsReview    bool
	ArchivedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MergeFields carries candidate data to fold into an existing person.
// Emails and Phones are unioned into the stored sets; the name and source
// fields are applied only when OverwriteFields is set (the resolver sets it
// when the candidate's classifier confidence beats the stored one).
type MergeFields struct {
	Emails          []string
	Phones          []string
	FirstName       string
	LastName        string
	LeadSource      string
	Confidence      float64
	OverwriteFields bool
}

const personColumns = `id, first_name, last_name, emails, phones, client_type, lead_status,
	lead_source, assigned_to, last_confidence, needs_review, archived_at, created_at, updated_at`

// Repository provides data access for people. It is bound to a query surface
// that may be the shared pool or a caller-owned transaction.
type Repository struct {
	q db.DBTX
}

// New creates a new people repository.
func New(q db.DBTX) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

func scanPerson(row pgx.Row) (Person, error) {
	var p Person
	var clientType, leadStatus string
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Emails, &p.Phones, &clientType, &leadStatus,
		&p.LeadSource, &p.AssignedTo, &p.LastConfidence, &p.NeedsReview, &p.ArchivedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Person{}, err
	}
	p.ClientType = domain.ClientType(clientType)
	p.LeadStatus = domain.Status(leadStatus)
	return p, nil
}

// GetByID returns a person by id, archived or not.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Person, error) {
	row := r.q.QueryRow(ctx, `SELECT `+personColumns+` FROM people WHERE id = $1`, id)
	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Person{}, ErrPersonNotFound
	}
	return p, err
}

// FindActiveByIdentity returns all non-archived people claiming at least one
// of the given normalized emails or phone digit strings.
func (r *Repository) FindActiveByIdentity(ctx context.Context, emails, phones []string) ([]Person, error) {
	if len(emails) == 0 && len(phones) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+personColumns+`
		FROM people
		WHERE archived_at IS NULL
		  AND (emails && $1 OR phones && $2)
		ORDER BY created_at DESC
	`, emails, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Create inserts a new person record in staging status.
func (r *Repository) Create(ctx context.Context, p Person) (Person, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO people (first_name, last_name, emails, phones, client_type, lead_status,
			lead_source, last_confidence, needs_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+personColumns, p.FirstName, p.LastName, p.Emails, p.Phones,
		string(p.ClientType), string(domain.StatusStaging), p.LeadSource, p.LastConfidence, p.NeedsReview)
	return scanPerson(row)
}

// Merge unions the candidate's identity sets into an existing person and,
// when fields.OverwriteFields is set, replaces the mutable display fields.
func (r *Repository) Merge(ctx context.Context, id uuid.UUID, fields MergeFields) (Person, error) {
	var row pgx.Row
	if fields.OverwriteFields {
		row = r.q.QueryRow(ctx, `
			UPDATE people SET
				emails = (SELECT array_agg(DISTINCT e) FROM unnest(emails || $2) AS e),
				phones = (SELECT array_agg(DISTINCT p) FROM unnest(phones || $3) AS p),
				first_name = $4,
				last_name = $5,
				lead_source = $6,
				last_confidence = $7,
				updated_at = now()
			WHERE id = $1 AND archived_at IS NULL
			RETURNING `+personColumns,
			id, fields.Emails, fields.Phones, fields.FirstName, fields.LastName,
			fields.LeadSource, fields.Confidence)
	} else {
		row = r.q.QueryRow(ctx, `
			UPDATE people SET
				emails = (SELECT array_agg(DISTINCT e) FROM unnest(emails || $2) AS e),
				phones = (SELECT array_agg(DISTINCT p) FROM unnest(phones || $3) AS p),
				updated_at = now()
			WHERE id = $1 AND archived_at IS NULL
			RETURNING `+personColumns,
			id, fields.Emails, fields.Phones)
	}
	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Person{}, ErrPersonNotFound
	}
	return p, err
}

// Assign sets the owning agent and moves a staging lead to assigned.
func (r *Repository) Assign(ctx context.Context, personID, agentID uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE people
		SET assigned_to = $2, lead_status = $3, updated_at = now()
		WHERE id = $1 AND archived_at IS NULL AND lead_status = $4
	`, personID, agentID, string(domain.StatusAssigned), string(domain.StatusStaging))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// UpdateStatus writes a new lead status. Transition validity is the
// service's responsibility.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE people SET lead_status = $2, updated_at = now()
		WHERE id = $1 AND archived_at IS NULL
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// Archive soft-deletes a person.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE people SET archived_at = now(), updated_at = now()
		WHERE id = $1 AND archived_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// HardDelete removes a staging lead entirely. The status guard is enforced
// in SQL so a concurrent assignment cannot race the delete.
func (r *Repository) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM people WHERE id = $1 AND lead_status = $2
	`, id, string(domain.StatusStaging))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// List returns non-archived people, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Person, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+personColumns+`
		FROM people
		WHERE archived_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
