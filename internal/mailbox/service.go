package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/logger"
)

// refreshMargin treats tokens expiring inside this window as already stale
// so a sweep refreshes them before a poller trips over a 401 mid-batch.
const refreshMargin = 5 * time.Minute

// SweepResult summarizes one pass over the active token set.
type SweepResult struct {
	Processed   int `json:"processed"`
	Refreshed   int `json:"refreshed"`
	Deactivated int `json:"deactivated"`
}

// TokenStore is the persistence surface the lifecycle service needs.
type TokenStore interface {
	ListActiveTokens(ctx context.Context) ([]TokenRecord, error)
	GetActiveTokenForAgent(ctx context.Context, agentID uuid.UUID) (TokenRecord, error)
	SaveGrant(ctx context.Context, agentID uuid.UUID, mailbox, accessToken, refreshToken string, expiresAt time.Time) (TokenRecord, error)
	UpdateAccessToken(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time) error
	DeactivateToken(ctx context.Context, id uuid.UUID) error
}

// Service owns the mailbox token lifecycle.
type Service struct {
	store    TokenStore
	client   Client
	eventBus events.Bus
	log      *logger.Logger
}

func NewService(store TokenStore, client Client, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, client: client, eventBus: eventBus, log: log}
}

// RegisterGrant stores a fresh OAuth grant for an agent. Any prior active
// grant for the agent is deactivated so at most one token polls the mailbox.
func (s *Service) RegisterGrant(ctx context.Context, agentID uuid.UUID, mailbox, accessToken, refreshToken string, expiresAt time.Time) (TokenRecord, error) {
	rec, err := s.store.SaveGrant(ctx, agentID, mailbox, accessToken, refreshToken, expiresAt)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("save grant: %w", err)
	}
	s.log.Info("mailbox: grant registered", "agent_id", agentID, "mailbox", mailbox)
	return rec, nil
}

// ListTokens returns the active token set for the admin status view.
func (s *Service) ListTokens(ctx context.Context) ([]TokenRecord, error) {
	return s.store.ListActiveTokens(ctx)
}

// Deactivate retires one grant by id from the admin surface.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.store.DeactivateToken(ctx, id)
}

// CredentialsFor returns live credentials for one agent, refreshing the
// access token first when it is stale.
func (s *Service) CredentialsFor(ctx context.Context, agentID uuid.UUID) (Credentials, error) {
	rec, err := s.store.GetActiveTokenForAgent(ctx, agentID)
	if err != nil {
		return Credentials{}, err
	}
	rec, err = s.ensureFresh(ctx, rec)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}, nil
}

// Sweep walks every active token once: stale or rejected tokens are
// refreshed in place; tokens whose refresh grant is revoked are
// deactivated and an event is published. Transient upstream failures
// leave the token untouched for the next sweep.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	tokens, err := s.store.ListActiveTokens(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list tokens: %w", err)
	}

	var result SweepResult
	for _, rec := range tokens {
		result.Processed++

		outcome, err := s.sweepOne(ctx, rec)
		if err != nil {
			s.log.Error("mailbox: token sweep item failed", "error", err, "agent_id", rec.AgentID)
			continue
		}
		switch outcome {
		case outcomeRefreshed:
			result.Refreshed++
		case outcomeDeactivated:
			result.Deactivated++
		}
	}

	s.log.Info("mailbox: token sweep finished",
		"processed", result.Processed, "refreshed", result.Refreshed, "deactivated", result.Deactivated)
	return result, nil
}

type sweepOutcome int

const (
	outcomeValid sweepOutcome = iota
	outcomeRefreshed
	outcomeDeactivated
)

func (s *Service) sweepOne(ctx context.Context, rec TokenRecord) (sweepOutcome, error) {
	creds := Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}

	if rec.AccessToken != "" && time.Until(rec.ExpiresAt) >= refreshMargin {
		err := s.client.ValidateToken(ctx, creds)
		switch {
		case err == nil:
			return outcomeValid, nil
		case errors.Is(err, ErrTokenInvalid):
			// fall through to the refresh path
		default:
			return outcomeValid, fmt.Errorf("validate token: %w", err)
		}
	}

	if rec.RefreshToken == "" {
		return s.deactivate(ctx, rec, "missing_refresh_token")
	}

	refreshed, err := s.client.RefreshToken(ctx, creds)
	if errors.Is(err, ErrTokenInvalid) {
		return s.deactivate(ctx, rec, "refresh_rejected")
	}
	if err != nil {
		return outcomeValid, fmt.Errorf("refresh token: %w", err)
	}

	if err := s.store.UpdateAccessToken(ctx, rec.ID, refreshed.AccessToken, refreshed.ExpiresAt); err != nil {
		return outcomeValid, fmt.Errorf("store refreshed token: %w", err)
	}
	return outcomeRefreshed, nil
}

func (s *Service) ensureFresh(ctx context.Context, rec TokenRecord) (TokenRecord, error) {
	if rec.AccessToken != "" && time.Until(rec.ExpiresAt) >= refreshMargin {
		return rec, nil
	}

	if rec.RefreshToken == "" {
		if _, derr := s.deactivate(ctx, rec, "missing_refresh_token"); derr != nil {
			return TokenRecord{}, derr
		}
		return TokenRecord{}, ErrTokenInvalid
	}

	refreshed, err := s.client.RefreshToken(ctx, Credentials{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken})
	if errors.Is(err, ErrTokenInvalid) {
		if _, derr := s.deactivate(ctx, rec, "refresh_rejected"); derr != nil {
			return TokenRecord{}, derr
		}
		return TokenRecord{}, ErrTokenInvalid
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("refresh token: %w", err)
	}

	if err := s.store.UpdateAccessToken(ctx, rec.ID, refreshed.AccessToken, refreshed.ExpiresAt); err != nil {
		return TokenRecord{}, fmt.Errorf("store refreshed token: %w", err)
	}
	rec.AccessToken = refreshed.AccessToken
	rec.ExpiresAt = refreshed.ExpiresAt
	return rec, nil
}

func (s *Service) deactivate(ctx context.Context, rec TokenRecord, reason string) (sweepOutcome, error) {
	if err := s.store.DeactivateToken(ctx, rec.ID); err != nil {
		return outcomeValid, fmt.Errorf("deactivate token: %w", err)
	}

	s.log.Warn("mailbox: token deactivated", "agent_id", rec.AgentID, "mailbox", rec.Mailbox, "reason", reason)
	s.eventBus.Publish(ctx, events.MailboxTokenDeactivated{
		BaseEvent: events.NewBaseEvent(),
		AgentID:   rec.AgentID,
		Mailbox:   rec.Mailbox,
		Reason:    reason,
	})
	return outcomeDeactivated, nil
}
