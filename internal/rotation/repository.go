package rotation

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository provides data access for rotation entries and the cursor.
type Repository struct {
	q db.DBTX
}

// NewRepository creates a new rotation repository.
func NewRepository(q db.DBTX) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// EntryRecord is an Entry with bookkeeping timestamps for the admin surface.
type EntryRecord struct {
	Entry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListEntries returns all rotation entries, active and inactive, in ring
// order (priority asc, agent id asc).
func (r *Repository) ListEntries(ctx context.Context) ([]EntryRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT agent_id, is_active, priority, created_at, updated_at
		FROM round_robin_entries
		ORDER BY priority ASC, agent_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EntryRecord
	for rows.Next() {
		var e EntryRecord
		if err := rows.Scan(&e.AgentID, &e.IsActive, &e.Priority, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// UpsertEntry creates or updates an agent's rotation slot.
func (r *Repository) UpsertEntry(ctx context.Context, e Entry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO round_robin_entries (agent_id, is_active, priority)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE
		SET is_active = EXCLUDED.is_active, priority = EXCLUDED.priority, updated_at = now()
	`, e.AgentID, e.IsActive, e.Priority)
	return err
}

// GetCursor returns the last-assigned agent id, or nil when no assignment
// has happened yet.
func (r *Repository) GetCursor(ctx context.Context) (*uuid.UUID, error) {
	var cursor *uuid.UUID
	err := r.q.QueryRow(ctx, `
		SELECT cursor_agent_id FROM round_robin_config WHERE id = 1
	`).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cursor, err
}

// ClaimNext atomically hands out the next assignee. The single cursor row is
// locked FOR UPDATE so two concurrent claims serialize: the second waits,
// re-reads the advanced cursor, and receives a different agent. The new
// cursor commits or rolls back together with the caller's lead assignment
// because both run on the same transaction.
func (r *Repository) ClaimNext(ctx context.Context) (uuid.UUID, error) {
	var cursor *uuid.UUID
	err := r.q.QueryRow(ctx, `
		SELECT cursor_agent_id FROM round_robin_config WHERE id = 1 FOR UPDATE
	`).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO round_robin_config (id, cursor_agent_id) VALUES (1, NULL)
			ON CONFLICT (id) DO NOTHING
		`); err != nil {
			return uuid.Nil, err
		}
		err = r.q.QueryRow(ctx, `
			SELECT cursor_agent_id FROM round_robin_config WHERE id = 1 FOR UPDATE
		`).Scan(&cursor)
	}
	if err != nil {
		return uuid.Nil, err
	}

	rows, err := r.q.Query(ctx, `
		SELECT agent_id, is_active, priority
		FROM round_robin_entries
		ORDER BY priority ASC, agent_id ASC
	`)
	if err != nil {
		return uuid.Nil, err
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.AgentID, &e.IsActive, &e.Priority); err != nil {
			rows.Close()
			return uuid.Nil, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if rows.Err() != nil {
		return uuid.Nil, rows.Err()
	}

	next, ok := NextAfter(entries, cursor)
	if !ok {
		return uuid.Nil, ErrNoEligibleAgent
	}

	if _, err := r.q.Exec(ctx, `
		UPDATE round_robin_config SET cursor_agent_id = $1, updated_at = now() WHERE id = 1
	`, next.AgentID); err != nil {
		return uuid.Nil, err
	}

	return next.AgentID, nil
}
