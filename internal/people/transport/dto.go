// Package transport defines request/response DTOs for the people module.
package transport

import (
	"time"

	"leadflow_backend/internal/people/domain"
	"leadflow_backend/internal/people/repository"

	"github.com/google/uuid"
)

// UpdateStatusRequest moves a lead to a new workflow status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=contacted qualified converted lost"`
}

// AssignRequest manually assigns a lead to a specific agent, bypassing
// the rotation.
type AssignRequest struct {
	AgentID uuid.UUID `json:"agentId" validate:"required"`
}

// PersonResponse is the external shape of a person record.
type PersonResponse struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Emails         []string   `json:"emails"`
	Phones         []string   `json:"phones"`
	ClientType     string     `json:"clientType"`
	LeadStatus     string     `json:"leadStatus"`
	LeadSource     string     `json:"leadSource,omitempty"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
	LastConfidence float64    `json:"lastConfidence"`
	NeedsReview    bool       `json:"needsReview"`
	Archived       bool       `json:"archived"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Actor     string         `json:"actor"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromPerson maps a repository person to its response shape.
func FromPerson(p repository.Person) PersonResponse {
	return PersonResponse{
		ID:             p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Emails:         p.Emails,
		Phones:         p.Phones,
		ClientType:     string(p.ClientType),
		LeadStatus:     string(p.LeadStatus),
		LeadSource:     p.LeadSource,
		AssignedTo:     p.AssignedTo,
		LastConfidence: p.LastConfidence,
		NeedsReview:    p.NeedsReview,
		Archived:       p.ArchivedAt != nil,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// FromActivity maps a repository activity to its response shape.
func FromActivity(a repository.Activity) ActivityResponse {
	return ActivityResponse{
		ID:        a.ID,
		Kind:      a.Kind,
		Summary:   a.Summary,
		Metadata:  a.Metadata,
		Actor:     a.Actor,
		CreatedAt: a.CreatedAt,
	}
}

// StatusFromString parses and validates a status string.
func StatusFromString(value string) (domain.Status, bool) {
	s := domain.Status(value)
	return s, s.Valid()
}
