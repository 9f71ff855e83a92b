package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadflow_backend/platform/db"
)

// ErrTokenNotFound is returned when no matching token record exists.
var ErrTokenNotFound = errors.New("mailbox token not found")

// TokenRecord is a stored mailbox grant for one agent.
type TokenRecord struct {
	ID           uuid.UUID
	AgentID      uuid.UUID
	Mailbox      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists mailbox tokens and poll leases.
type Repository struct {
	q db.DBTX
}

func NewRepository(q db.DBTX) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

const tokenColumns = `id, agent_id, mailbox, access_token, refresh_token, expires_at, is_active, created_at, updated_at`

func scanToken(row pgx.Row) (TokenRecord, error) {
	var t TokenRecord
	err := row.Scan(&t.ID, &t.AgentID, &t.Mailbox, &t.AccessToken, &t.RefreshToken,
		&t.ExpiresAt, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// ListActiveTokens returns every active grant, oldest agent first.
func (r *Repository) ListActiveTokens(ctx context.Context) ([]TokenRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM user_mailbox_tokens
		WHERE is_active = TRUE
		ORDER BY agent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// GetActiveTokenForAgent returns the agent's current active grant.
func (r *Repository) GetActiveTokenForAgent(ctx context.Context, agentID uuid.UUID) (TokenRecord, error) {
	t, err := scanToken(r.q.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM user_mailbox_tokens
		WHERE agent_id = $1 AND is_active = TRUE`, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRecord{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("get active token: %w", err)
	}
	return t, nil
}

// SaveGrant stores a new token grant, deactivating any prior active grant
// for the same agent in the same statement batch.
func (r *Repository) SaveGrant(ctx context.Context, agentID uuid.UUID, mailbox, accessToken, refreshToken string, expiresAt time.Time) (TokenRecord, error) {
	_, err := r.q.Exec(ctx, `
		UPDATE user_mailbox_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE agent_id = $1 AND is_active = TRUE`, agentID)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("deactivate prior grants: %w", err)
	}

	t, err := scanToken(r.q.QueryRow(ctx, `
		INSERT INTO user_mailbox_tokens (id, agent_id, mailbox, access_token, refresh_token, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+tokenColumns,
		uuid.New(), agentID, mailbox, accessToken, refreshToken, expiresAt))
	if err != nil {
		return TokenRecord{}, fmt.Errorf("insert grant: %w", err)
	}
	return t, nil
}

// UpdateAccessToken stores a refreshed access token in place.
func (r *Repository) UpdateAccessToken(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE user_mailbox_tokens
		SET access_token = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE`, id, accessToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeactivateToken marks a grant unusable.
func (r *Repository) DeactivateToken(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE user_mailbox_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// AcquireLease takes the per-agent poll lease if it is free or expired.
// Returns false when another worker holds it.
func (r *Repository) AcquireLease(ctx context.Context, agentID uuid.UUID, ttl time.Duration) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO poll_leases (agent_id, locked_until, acquired_at)
		VALUES ($1, NOW() + $2, NOW())
		ON CONFLICT (agent_id) DO UPDATE
		SET locked_until = NOW() + $2, acquired_at = NOW()
		WHERE poll_leases.locked_until < NOW()`, agentID, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease frees the per-agent poll lease.
func (r *Repository) ReleaseLease(ctx context.Context, agentID uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `
		UPDATE poll_leases SET locked_until = NOW() WHERE agent_id = $1`, agentID); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
