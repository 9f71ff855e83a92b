// Package service implements person lifecycle operations on top of the
// repository: status transitions, manual assignment, archival and the
// staging-only hard delete.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/people/domain"
	"leadflow_backend/internal/people/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Satisfied by
// *repository.Repository; fakes implement it in tests.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Person, error)
	List(ctx context.Context, limit, offset int) ([]repository.Person, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	Assign(ctx context.Context, personID, agentID uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	InsertActivity(ctx context.Context, a repository.Activity) error
	ListActivities(ctx context.Context, personID uuid.UUID, limit int) ([]repository.Activity, error)
}

// Service provides person lifecycle operations.
type Service struct {
	store    Store
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new people service.
func New(store Store, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, eventBus: eventBus, log: log}
}

// GetByID returns a single person.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Person, error) {
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPersonNotFound) {
		return repository.Person{}, apperr.NotFound("person not found").WithCode("person_not_found")
	}
	return p, err
}

// List returns a page of non-archived people.
func (s *Service) List(ctx context.Context, limit, offset int) ([]repository.Person, error) {
	return s.store.List(ctx, limit, offset)
}

// ListActivities returns the audit trail for a person.
func (s *Service) ListActivities(ctx context.Context, personID uuid.UUID, limit int) ([]repository.Activity, error) {
	return s.store.ListActivities(ctx, personID, limit)
}

// UpdateStatus applies an agent-initiated workflow transition. Transitions
// into assigned are rejected here; only the rotation engine assigns.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target domain.Status, actor string) (repository.Person, error) {
	if target == domain.StatusAssigned {
		return repository.Person{}, apperr.Forbidden("assigned status is set by the rotation engine").WithCode("status_rotation_only")
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return repository.Person{}, err
	}
	if p.ArchivedAt != nil {
		return repository.Person{}, apperr.Conflict("person is archived").WithCode("person_archived")
	}
	if !domain.CanTransition(p.LeadStatus, target) {
		return repository.Person{}, apperr.Validation(
			fmt.Sprintf("cannot move lead from %s to %s", p.LeadStatus, target),
		).WithCode("invalid_transition")
	}

	if err := s.store.UpdateStatus(ctx, id, target); err != nil {
		return repository.Person{}, err
	}

	if err := s.store.InsertActivity(ctx, repository.Activity{
		PersonID: id,
		Kind:     repository.ActivityStatusChanged,
		Summary:  fmt.Sprintf("Status changed from %s to %s", p.LeadStatus, target),
		Metadata: map[string]any{"from": string(p.LeadStatus), "to": string(target)},
		Actor:    actor,
	}); err != nil {
		s.log.Error("people: failed to record status activity", "error", err, "personId", id)
	}

	p.LeadStatus = target
	return p, nil
}

// Assign manually hands a staging lead to a specific agent. This is the
// admin override path; fair distribution goes through the rotation engine.
func (s *Service) Assign(ctx context.Context, personID, agentID uuid.UUID, actor string) (repository.Person, error) {
	p, err := s.GetByID(ctx, personID)
	if err != nil {
		return repository.Person{}, err
	}
	if p.LeadStatus != domain.StatusStaging {
		return repository.Person{}, apperr.Conflict("only staging leads can be assigned").WithCode("not_in_staging")
	}

	if err := s.store.Assign(ctx, personID, agentID); err != nil {
		if errors.Is(err, repository.ErrPersonNotFound) {
			return repository.Person{}, apperr.Conflict("lead left staging before assignment").WithCode("not_in_staging")
		}
		return repository.Person{}, err
	}

	if err := s.store.InsertActivity(ctx, repository.Activity{
		PersonID: personID,
		Kind:     repository.ActivityLeadAssigned,
		Summary:  "Lead manually assigned",
		Metadata: map[string]any{"agentId": agentID.String(), "manual": true},
		Actor:    actor,
	}); err != nil {
		s.log.Error("people: failed to record assignment activity", "error", err, "personId", personID)
	}

	s.eventBus.Publish(ctx, events.LeadAssigned{
		BaseEvent:  events.NewBaseEvent(),
		PersonID:   personID,
		AgentID:    agentID,
		Source:     p.LeadSource,
		PersonName: strings.TrimSpace(p.FirstName + " " + p.LastName),
	})

	p.LeadStatus = domain.StatusAssigned
	p.AssignedTo = &agentID
	return p, nil
}

// Archive soft-deletes a person; the record stays for audit and dedup no
// longer matches it.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	err := s.store.Archive(ctx, id)
	if errors.Is(err, repository.ErrPersonNotFound) {
		return apperr.NotFound("person not found").WithCode("person_not_found")
	}
	return err
}

// HardDelete removes a staging lead entirely. Any other status is refused;
// archived-but-staging counts as staging and is still deletable.
func (s *Service) HardDelete(ctx context.Context, id uuid.UUID) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !domain.HardDeletable(p.LeadStatus) {
		return apperr.Forbidden("only staging leads can be hard-deleted").WithCode("not_hard_deletable")
	}

	err = s.store.HardDelete(ctx, id)
	if errors.Is(err, repository.ErrPersonNotFound) {
		return apperr.Conflict("lead left staging before deletion").WithCode("not_hard_deletable")
	}
	return err
}
