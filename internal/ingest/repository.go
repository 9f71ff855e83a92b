package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	peoplerepo "leadflow_backend/internal/people/repository"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/platform/db"
)

// ProcessedEmail is one row of the append-only idempotency ledger. The
// message id is the provider's unique identifier; PersonID is nil when
// the candidate was rejected.
type ProcessedEmail struct {
	MessageID   string
	PersonID    *uuid.UUID
	Source      Source
	Confidence  float64
	Outcome     string
	ProcessedAt time.Time
}

// Ledger persists the idempotency ledger.
type Ledger struct {
	q db.DBTX
}

func NewLedger(q db.DBTX) *Ledger {
	return &Ledger{q: q}
}

// WithTx returns a ledger bound to the given transaction.
func (l *Ledger) WithTx(tx pgx.Tx) *Ledger {
	return &Ledger{q: tx}
}

// GetProcessedEmail returns the prior result for a message id, or nil
// when the id has not been processed.
func (l *Ledger) GetProcessedEmail(ctx context.Context, messageID string) (*ProcessedEmail, error) {
	var rec ProcessedEmail
	err := l.q.QueryRow(ctx, `
		SELECT message_id, person_id, source, confidence, outcome, processed_at
		FROM processed_emails
		WHERE message_id = $1`, messageID).
		Scan(&rec.MessageID, &rec.PersonID, &rec.Source, &rec.Confidence, &rec.Outcome, &rec.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processed email: %w", err)
	}
	return &rec, nil
}

// RecordProcessedEmail appends one ledger row. A duplicate message id is
// a conflict; the caller should have short-circuited on the prior row.
func (l *Ledger) RecordProcessedEmail(ctx context.Context, rec ProcessedEmail) error {
	_, err := l.q.Exec(ctx, `
		INSERT INTO processed_emails (message_id, person_id, source, confidence, outcome, processed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		rec.MessageID, rec.PersonID, rec.Source, rec.Confidence, rec.Outcome)
	if err != nil {
		return fmt.Errorf("record processed email: %w", err)
	}
	return nil
}

// Store is the transactional persistence surface one pipeline run works
// against. All methods operate inside the same unit; either every write
// for a candidate lands or none do.
type Store interface {
	GetProcessedEmail(ctx context.Context, messageID string) (*ProcessedEmail, error)
	RecordProcessedEmail(ctx context.Context, rec ProcessedEmail) error
	FindActiveByIdentity(ctx context.Context, emails, phones []string) ([]peoplerepo.Person, error)
	CreatePerson(ctx context.Context, p peoplerepo.Person) (peoplerepo.Person, error)
	MergePerson(ctx context.Context, id uuid.UUID, fields peoplerepo.MergeFields) (peoplerepo.Person, error)
	AssignPerson(ctx context.Context, personID, agentID uuid.UUID) error
	InsertActivity(ctx context.Context, a peoplerepo.Activity) error
	ClaimNextAssignee(ctx context.Context) (uuid.UUID, error)
}

// Units runs pipeline work in atomic units.
type Units interface {
	Run(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// pgxUnits runs each unit as one database transaction over the shared
// pool, binding the people, rotation and ledger repositories to it.
type pgxUnits struct {
	pool     *pgxpool.Pool
	people   *peoplerepo.Repository
	rotation *rotation.Repository
	ledger   *Ledger
}

// NewUnits builds the transactional unit runner for the pipeline.
func NewUnits(pool *pgxpool.Pool, people *peoplerepo.Repository, rot *rotation.Repository, ledger *Ledger) Units {
	return &pgxUnits{pool: pool, people: people, rotation: rot, ledger: ledger}
}

func (u *pgxUnits) Run(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit: %w", err)
	}
	defer tx.Rollback(ctx)

	store := &txStore{
		people:   u.people.WithTx(tx),
		rotation: u.rotation.WithTx(tx),
		ledger:   u.ledger.WithTx(tx),
	}
	if err := fn(ctx, store); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit: %w", err)
	}
	return nil
}

type txStore struct {
	people   *peoplerepo.Repository
	rotation *rotation.Repository
	ledger   *Ledger
}

func (s *txStore) GetProcessedEmail(ctx context.Context, messageID string) (*ProcessedEmail, error) {
	return s.ledger.GetProcessedEmail(ctx, messageID)
}

func (s *txStore) RecordProcessedEmail(ctx context.Context, rec ProcessedEmail) error {
	return s.ledger.RecordProcessedEmail(ctx, rec)
}

func (s *txStore) FindActiveByIdentity(ctx context.Context, emails, phones []string) ([]peoplerepo.Person, error) {
	return s.people.FindActiveByIdentity(ctx, emails, phones)
}

func (s *txStore) CreatePerson(ctx context.Context, p peoplerepo.Person) (peoplerepo.Person, error) {
	return s.people.Create(ctx, p)
}

func (s *txStore) MergePerson(ctx context.Context, id uuid.UUID, fields peoplerepo.MergeFields) (peoplerepo.Person, error) {
	return s.people.Merge(ctx, id, fields)
}

func (s *txStore) AssignPerson(ctx context.Context, personID, agentID uuid.UUID) error {
	return s.people.Assign(ctx, personID, agentID)
}

func (s *txStore) InsertActivity(ctx context.Context, a peoplerepo.Activity) error {
	return s.people.InsertActivity(ctx, a)
}

func (s *txStore) ClaimNextAssignee(ctx context.Context) (uuid.UUID, error) {
	return s.rotation.ClaimNext(ctx)
}
