package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// lookbackWindow bounds how far back a sweep lists messages. The ledger
// makes re-listing the same window a no-op.
const lookbackWindow = 24 * time.Hour

// SourceReport is the per-mailbox slice of a sweep.
type SourceReport struct {
	AgentID   uuid.UUID `json:"agentId"`
	Mailbox   string    `json:"mailbox"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Skipped   bool      `json:"skipped"`
	Error     string    `json:"error,omitempty"`
}

// SweepReport aggregates one mailbox sweep across all active tokens.
type SweepReport struct {
	TotalProcessed int            `json:"totalProcessed"`
	PerSource      []SourceReport `json:"perSource"`
}

// TokenSource hands the sweeper the active mailboxes and live
// credentials for each.
type TokenSource interface {
	ListTokens(ctx context.Context) ([]mailbox.TokenRecord, error)
	CredentialsFor(ctx context.Context, agentID uuid.UUID) (mailbox.Credentials, error)
}

// LeaseStore serializes polling per agent.
type LeaseStore interface {
	AcquireLease(ctx context.Context, agentID uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, agentID uuid.UUID) error
}

// Sweeper polls every active mailbox, classifies unseen messages and
// runs each candidate through the pipeline. Per-item failures never
// abort the batch.
type Sweeper struct {
	tokens     TokenSource
	leases     LeaseStore
	client     mailbox.Client
	classifier classifier.LeadClassifier
	pipeline   *Pipeline
	maxResults int
	leaseTTL   time.Duration
	log        *logger.Logger
}

func NewSweeper(tokens TokenSource, leases LeaseStore, client mailbox.Client, cls classifier.LeadClassifier, pipeline *Pipeline, cfg config.MailboxConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		tokens:     tokens,
		leases:     leases,
		client:     client,
		classifier: cls,
		pipeline:   pipeline,
		maxResults: cfg.GetMailboxPollMaxResults(),
		leaseTTL:   cfg.GetMailboxPollLeaseTTL(),
		log:        log,
	}
}

// sweepConcurrency caps how many mailboxes one sweep drains in parallel.
const sweepConcurrency = 4

// Sweep walks every active mailbox once. Mailboxes are drained in
// parallel; one whose lease is held by another worker is skipped and
// picked up by that worker or the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	tokens, err := s.tokens.ListTokens(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list mailbox tokens: %w", err)
	}

	perSource := make([]SourceReport, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for i, tok := range tokens {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			perSource[i] = s.sweepMailbox(gctx, tok)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{PerSource: perSource}, err
	}

	report := SweepReport{PerSource: perSource}
	for _, src := range perSource {
		report.TotalProcessed += src.Processed
	}
	return report, nil
}

func (s *Sweeper) sweepMailbox(ctx context.Context, tok mailbox.TokenRecord) SourceReport {
	report := SourceReport{AgentID: tok.AgentID, Mailbox: tok.Mailbox}

	acquired, err := s.leases.AcquireLease(ctx, tok.AgentID, s.leaseTTL)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if !acquired {
		report.Skipped = true
		return report
	}
	defer func() {
		if err := s.leases.ReleaseLease(context.WithoutCancel(ctx), tok.AgentID); err != nil {
			s.log.Error("ingest: release poll lease failed", "error", err, "agent_id", tok.AgentID)
		}
	}()

	creds, err := s.tokens.CredentialsFor(ctx, tok.AgentID)
	if err != nil {
		if errors.Is(err, mailbox.ErrTokenInvalid) {
			report.Error = "token deactivated"
			return report
		}
		report.Error = err.Error()
		return report
	}

	ids, err := s.client.ListRecentMessages(ctx, creds, time.Now().Add(-lookbackWindow), s.maxResults)
	if err != nil {
		s.log.Error("ingest: list messages failed", "error", err, "mailbox", tok.Mailbox)
		report.Error = err.Error()
		return report
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			report.Error = ctx.Err().Error()
			return report
		}
		if err := s.processMessage(ctx, creds, tok, id); err != nil {
			report.Failed++
			s.log.Error("ingest: message failed", "error", err, "mailbox", tok.Mailbox, "message_id", id)
			continue
		}
		report.Processed++
	}
	return report
}

func (s *Sweeper) processMessage(ctx context.Context, creds mailbox.Credentials, tok mailbox.TokenRecord, id string) error {
	// Cheap ledger probe before fetching and classifying; the pipeline
	// re-checks inside its transaction.
	if done, err := s.pipeline.AlreadyProcessed(ctx, id); err != nil {
		return err
	} else if done {
		return nil
	}

	msg, err := s.client.GetMessage(ctx, creds, id)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	verdict, err := s.classifier.Classify(ctx, classifier.RawMessage{
		From:    msg.From,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("classify message: %w", err)
	}

	raw := RawLead{
		Source:     SourceEmail,
		MessageID:  id,
		FirstName:  verdict.Lead.FirstName,
		LastName:   verdict.Lead.LastName,
		Message:    verdict.Lead.Summary,
		IsLead:     verdict.IsLead,
		Confidence: verdict.Confidence,
	}
	if verdict.Lead.Email != "" {
		raw.Emails = append(raw.Emails, verdict.Lead.Email)
	}
	if sender := senderAddress(msg.From); sender != "" && sender != verdict.Lead.Email {
		raw.Emails = append(raw.Emails, sender)
	}
	if verdict.Lead.Phone != "" {
		raw.Phones = append(raw.Phones, verdict.Lead.Phone)
	}

	_, err = s.pipeline.Ingest(ctx, raw)
	return err
}

// senderAddress extracts the bare address from a "Name <addr>" header.
func senderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}
