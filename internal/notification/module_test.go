package notification

import (
	"context"
	"errors"
	"testing"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type testSender struct {
	leadAssignedCalls     int
	tokenDeactivatedCalls int
	lastTo                string
	lastPersonName        string
	lastReason            string
}

func (s *testSender) SendLeadAssignedEmail(_ context.Context, toEmail, personName, _ string) error {
	s.leadAssignedCalls++
	s.lastTo = toEmail
	s.lastPersonName = personName
	return nil
}

func (s *testSender) SendTokenDeactivatedEmail(_ context.Context, toEmail, _, reason string) error {
	s.tokenDeactivatedCalls++
	s.lastTo = toEmail
	s.lastReason = reason
	return nil
}

type testMailboxReader struct {
	tokens map[uuid.UUID]mailbox.TokenRecord
	err    error
}

func (r testMailboxReader) GetActiveTokenForAgent(_ context.Context, agentID uuid.UUID) (mailbox.TokenRecord, error) {
	if r.err != nil {
		return mailbox.TokenRecord{}, r.err
	}
	token, ok := r.tokens[agentID]
	if !ok {
		return mailbox.TokenRecord{}, mailbox.ErrTokenNotFound
	}
	return token, nil
}

func TestHandleLeadAssignedSendsToAgentMailbox(t *testing.T) {
	sender := &testSender{}
	agentID := uuid.New()
	reader := testMailboxReader{tokens: map[uuid.UUID]mailbox.TokenRecord{
		agentID: {AgentID: agentID, Mailbox: "agent@example.com"},
	}}

	m := New(sender, reader, logger.New("development"))
	err := m.Handle(context.Background(), events.LeadAssigned{
		PersonID:   uuid.New(),
		AgentID:    agentID,
		Source:     "webhook",
		PersonName: "Jan de Vries",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if sender.leadAssignedCalls != 1 {
		t.Fatalf("expected 1 lead assigned email, got %d", sender.leadAssignedCalls)
	}
	if sender.lastTo != "agent@example.com" {
		t.Fatalf("expected email to agent mailbox, got %q", sender.lastTo)
	}
	if sender.lastPersonName != "Jan de Vries" {
		t.Fatalf("expected person name in email, got %q", sender.lastPersonName)
	}
}

func TestHandleLeadAssignedSkipsWhenNoMailboxRegistered(t *testing.T) {
	sender := &testSender{}
	reader := testMailboxReader{tokens: map[uuid.UUID]mailbox.TokenRecord{}}

	m := New(sender, reader, logger.New("development"))
	err := m.Handle(context.Background(), events.LeadAssigned{
		PersonID: uuid.New(),
		AgentID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected missing mailbox to be skipped, got error: %v", err)
	}
	if sender.leadAssignedCalls != 0 {
		t.Fatalf("expected no email without a registered mailbox, got %d", sender.leadAssignedCalls)
	}
}

func TestHandleLeadAssignedPropagatesLookupError(t *testing.T) {
	sender := &testSender{}
	reader := testMailboxReader{err: errors.New("connection refused")}

	m := New(sender, reader, logger.New("development"))
	err := m.Handle(context.Background(), events.LeadAssigned{
		PersonID: uuid.New(),
		AgentID:  uuid.New(),
	})
	if err == nil {
		t.Fatal("expected lookup error to propagate")
	}
	if sender.leadAssignedCalls != 0 {
		t.Fatalf("expected no email on lookup failure, got %d", sender.leadAssignedCalls)
	}
}

func TestHandleMailboxTokenDeactivatedMailsTheMailboxItself(t *testing.T) {
	sender := &testSender{}
	m := New(sender, testMailboxReader{}, logger.New("development"))

	err := m.Handle(context.Background(), events.MailboxTokenDeactivated{
		AgentID: uuid.New(),
		Mailbox: "agent@example.com",
		Reason:  "refresh_rejected",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if sender.tokenDeactivatedCalls != 1 {
		t.Fatalf("expected 1 token deactivated email, got %d", sender.tokenDeactivatedCalls)
	}
	if sender.lastTo != "agent@example.com" {
		t.Fatalf("expected email to the affected mailbox, got %q", sender.lastTo)
	}
	if sender.lastReason != "refresh_rejected" {
		t.Fatalf("expected reason to pass through, got %q", sender.lastReason)
	}
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	m := New(&testSender{}, testMailboxReader{}, logger.New("development"))
	if err := m.Handle(context.Background(), events.LeadReceived{Source: "webhook"}); err != nil {
		t.Fatalf("expected unknown event to be ignored, got error: %v", err)
	}
}
