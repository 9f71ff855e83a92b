// Package notification provides event handlers for sending notification
// email in response to domain events. The module subscribes to events and
// inverts the dependency: domain modules do not need to know about email
// providers or templates.
package notification

import (
	"context"
	"errors"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// AgentMailboxReader resolves the mailbox address registered for an agent.
type AgentMailboxReader interface {
	GetActiveTokenForAgent(ctx context.Context, agentID uuid.UUID) (mailbox.TokenRecord, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender    email.Sender
	mailboxes AgentMailboxReader
	log       *logger.Logger
}

// New creates a notification module.
func New(sender email.Sender, mailboxes AgentMailboxReader, log *logger.Logger) *Module {
	return &Module{
		sender:    sender,
		mailboxes: mailboxes,
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.MailboxTokenDeactivated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.MailboxTokenDeactivated:
		return m.handleMailboxTokenDeactivated(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	token, err := m.mailboxes.GetActiveTokenForAgent(ctx, e.AgentID)
	if err != nil {
		if errors.Is(err, mailbox.ErrTokenNotFound) {
			m.log.Warn("no mailbox registered for assignee, notification skipped",
				"agentId", e.AgentID,
				"personId", e.PersonID,
			)
			return nil
		}
		m.log.Error("failed to resolve assignee mailbox",
			"agentId", e.AgentID,
			"personId", e.PersonID,
			"error", err,
		)
		return err
	}

	if err := m.sender.SendLeadAssignedEmail(ctx, token.Mailbox, e.PersonName, e.Source); err != nil {
		m.log.Error("failed to send lead assigned email",
			"agentId", e.AgentID,
			"personId", e.PersonID,
			"error", err,
		)
		return err
	}
	m.log.Info("lead assigned email sent", "agentId", e.AgentID, "personId", e.PersonID)
	return nil
}

func (m *Module) handleMailboxTokenDeactivated(ctx context.Context, e events.MailboxTokenDeactivated) error {
	if err := m.sender.SendTokenDeactivatedEmail(ctx, e.Mailbox, e.Mailbox, e.Reason); err != nil {
		m.log.Error("failed to send token deactivated email",
			"agentId", e.AgentID,
			"mailbox", e.Mailbox,
			"error", err,
		)
		return err
	}
	m.log.Info("token deactivated email sent", "agentId", e.AgentID, "mailbox", e.Mailbox)
	return nil
}
