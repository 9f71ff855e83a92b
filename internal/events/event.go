// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	platformevents "leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = platformevents.Event
	Bus         = platformevents.Bus
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	BaseEvent   = platformevents.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = platformevents.NewBaseEvent

// =============================================================================
// Ingestion Domain Events
// =============================================================================

// LeadReceived is published when a candidate passes normalization,
// before dedup resolution.
type LeadReceived struct {
	BaseEvent
	Source    string `json:"source"`
	MessageID string `json:"messageId"`
}

func (e LeadReceived) EventName() string { return "ingest.lead.received" }

// LeadCreated is published when the pipeline creates a new person record.
type LeadCreated struct {
	BaseEvent
	PersonID   uuid.UUID `json:"personId"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

func (e LeadCreated) EventName() string { return "ingest.lead.created" }

// LeadMerged is published when a candidate is folded into an existing person.
type LeadMerged struct {
	BaseEvent
	PersonID  uuid.UUID `json:"personId"`
	Source    string    `json:"source"`
	MessageID string    `json:"messageId"`
}

func (e LeadMerged) EventName() string { return "ingest.lead.merged" }

// LeadAssigned is published when the rotation engine hands a lead to an agent.
type LeadAssigned struct {
	BaseEvent
	PersonID   uuid.UUID `json:"personId"`
	AgentID    uuid.UUID `json:"agentId"`
	Source     string    `json:"source"`
	PersonName string    `json:"personName"`
}

func (e LeadAssigned) EventName() string { return "rotation.lead.assigned" }

// =============================================================================
// Mailbox Domain Events
// =============================================================================

// MailboxTokenDeactivated is published when a token sweep retires a
// credential; the owning agent must re-authorize before the mailbox is
// polled again.
type MailboxTokenDeactivated struct {
	BaseEvent
	AgentID uuid.UUID `json:"agentId"`
	Mailbox string    `json:"mailbox"`
	Reason  string    `json:"reason"`
}

func (e MailboxTokenDeactivated) EventName() string { return "mailbox.token.deactivated" }
