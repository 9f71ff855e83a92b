package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/platform/logger"
)

type fakeTokenSource struct {
	tokens []mailbox.TokenRecord
}

func (f *fakeTokenSource) ListTokens(context.Context) ([]mailbox.TokenRecord, error) {
	return f.tokens, nil
}

func (f *fakeTokenSource) CredentialsFor(_ context.Context, agentID uuid.UUID) (mailbox.Credentials, error) {
	return mailbox.Credentials{AccessToken: "at-" + agentID.String()}, nil
}

type fakeLeaseStore struct {
	held     map[uuid.UUID]bool
	acquired []uuid.UUID
	released []uuid.UUID
}

func (f *fakeLeaseStore) AcquireLease(_ context.Context, agentID uuid.UUID, _ time.Duration) (bool, error) {
	if f.held[agentID] {
		return false, nil
	}
	f.acquired = append(f.acquired, agentID)
	return true, nil
}

func (f *fakeLeaseStore) ReleaseLease(_ context.Context, agentID uuid.UUID) error {
	f.released = append(f.released, agentID)
	return nil
}

type fakeMailClient struct {
	messages map[string]mailbox.Message
	order    []string
	fetchErr map[string]error
}

func (f *fakeMailClient) ValidateToken(context.Context, mailbox.Credentials) error { return nil }
func (f *fakeMailClient) RefreshToken(context.Context, mailbox.Credentials) (mailbox.RefreshedToken, error) {
	return mailbox.RefreshedToken{}, nil
}
func (f *fakeMailClient) ListRecentMessages(context.Context, mailbox.Credentials, time.Time, int) ([]string, error) {
	return f.order, nil
}
func (f *fakeMailClient) GetMessage(_ context.Context, _ mailbox.Credentials, id string) (mailbox.Message, error) {
	if err := f.fetchErr[id]; err != nil {
		return mailbox.Message{}, err
	}
	return f.messages[id], nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(_ context.Context, msg classifier.RawMessage) (classifier.Classification, error) {
	return classifier.Classification{
		IsLead:     true,
		Confidence: 0.9,
		Lead:       classifier.LeadData{Email: msg.From, Summary: msg.Subject},
	}, nil
}

type mailboxConfig struct{}

func (mailboxConfig) GetMailboxAPIBaseURL() string          { return "" }
func (mailboxConfig) GetMailboxOAuthClientID() string       { return "" }
func (mailboxConfig) GetMailboxOAuthClientSecret() string   { return "" }
func (mailboxConfig) GetMailboxPollMaxResults() int         { return 25 }
func (mailboxConfig) GetMailboxPollLeaseTTL() time.Duration { return time.Minute }

func tokenFor(agentID uuid.UUID) mailbox.TokenRecord {
	return mailbox.TokenRecord{
		ID:        uuid.New(),
		AgentID:   agentID,
		Mailbox:   "agent@example.com",
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestSweeper(store *fakeStore, tokens *fakeTokenSource, leases *fakeLeaseStore, client *fakeMailClient) *Sweeper {
	pipeline := newTestPipeline(store, testIngestConfig{threshold: 0.5})
	return NewSweeper(tokens, leases, client, fakeClassifier{}, pipeline, mailboxConfig{}, logger.New("test"))
}

func TestSweepProcessesMessages(t *testing.T) {
	store := newFakeStore()
	store.entries = []rotation.Entry{{AgentID: uuid.New(), IsActive: true, Priority: 10}}
	agent := uuid.New()

	client := &fakeMailClient{
		order: []string{"g-1", "g-2"},
		messages: map[string]mailbox.Message{
			"g-1": {ID: "g-1", From: "a@x.com", Subject: "quote request"},
			"g-2": {ID: "g-2", From: "b@x.com", Subject: "another request"},
		},
	}
	leases := &fakeLeaseStore{held: map[uuid.UUID]bool{}}
	s := newTestSweeper(store, &fakeTokenSource{tokens: []mailbox.TokenRecord{tokenFor(agent)}}, leases, client)

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.TotalProcessed != 2 {
		t.Fatalf("total processed = %d, want 2", report.TotalProcessed)
	}
	if len(store.people) != 2 {
		t.Fatalf("people = %d, want 2", len(store.people))
	}
	if len(leases.released) != 1 {
		t.Fatal("lease not released after sweep")
	}
}

func TestSweepSkipsHeldLease(t *testing.T) {
	store := newFakeStore()
	agent := uuid.New()
	client := &fakeMailClient{order: []string{"g-1"}, messages: map[string]mailbox.Message{
		"g-1": {ID: "g-1", From: "a@x.com"},
	}}
	leases := &fakeLeaseStore{held: map[uuid.UUID]bool{agent: true}}
	s := newTestSweeper(store, &fakeTokenSource{tokens: []mailbox.TokenRecord{tokenFor(agent)}}, leases, client)

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.TotalProcessed != 0 {
		t.Fatalf("held mailbox was polled: %+v", report)
	}
	if len(report.PerSource) != 1 || !report.PerSource[0].Skipped {
		t.Fatalf("report must mark the mailbox skipped: %+v", report.PerSource)
	}
	if len(leases.released) != 0 {
		t.Fatal("a lease that was never acquired must not be released")
	}
}

func TestSweepIsolatesPerMessageFailures(t *testing.T) {
	store := newFakeStore()
	store.entries = []rotation.Entry{{AgentID: uuid.New(), IsActive: true, Priority: 10}}
	agent := uuid.New()

	client := &fakeMailClient{
		order: []string{"g-bad", "g-good"},
		messages: map[string]mailbox.Message{
			"g-good": {ID: "g-good", From: "a@x.com", Subject: "quote request"},
		},
		fetchErr: map[string]error{"g-bad": errors.New("upstream error: status 500")},
	}
	leases := &fakeLeaseStore{held: map[uuid.UUID]bool{}}
	s := newTestSweeper(store, &fakeTokenSource{tokens: []mailbox.TokenRecord{tokenFor(agent)}}, leases, client)

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	src := report.PerSource[0]
	if src.Failed != 1 || src.Processed != 1 {
		t.Fatalf("report = %+v, want 1 failed and 1 processed", src)
	}
	if len(store.people) != 1 {
		t.Fatalf("good message not ingested: %d people", len(store.people))
	}
}

func TestSweepSkipsSeenMessages(t *testing.T) {
	store := newFakeStore()
	store.entries = []rotation.Entry{{AgentID: uuid.New(), IsActive: true, Priority: 10}}
	agent := uuid.New()

	client := &fakeMailClient{
		order: []string{"g-1"},
		messages: map[string]mailbox.Message{
			"g-1": {ID: "g-1", From: "a@x.com", Subject: "quote request"},
		},
	}
	leases := &fakeLeaseStore{held: map[uuid.UUID]bool{}}
	s := newTestSweeper(store, &fakeTokenSource{tokens: []mailbox.TokenRecord{tokenFor(agent)}}, leases, client)

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(store.people) != 1 {
		t.Fatalf("re-listed message created a duplicate: %d people", len(store.people))
	}
	if store.claimCalls != 1 {
		t.Fatalf("rotation claimed %d times, want 1", store.claimCalls)
	}
}
