package service

import (
	"context"
	"testing"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/people/domain"
	"leadflow_backend/internal/people/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	people     map[uuid.UUID]repository.Person
	activities []repository.Activity
	deleted    []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{people: map[uuid.UUID]repository.Person{}}
}

func (f *fakeStore) add(status domain.Status) uuid.UUID {
	id := uuid.New()
	f.people[id] = repository.Person{
		ID:         id,
		FirstName:  "Jan",
		LastName:   "de Vries",
		LeadStatus: status,
	}
	return id
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Person, error) {
	p, ok := f.people[id]
	if !ok {
		return repository.Person{}, repository.ErrPersonNotFound
	}
	return p, nil
}

func (f *fakeStore) List(context.Context, int, int) ([]repository.Person, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Status) error {
	p, ok := f.people[id]
	if !ok {
		return repository.ErrPersonNotFound
	}
	p.LeadStatus = status
	f.people[id] = p
	return nil
}

func (f *fakeStore) Assign(_ context.Context, personID, agentID uuid.UUID) error {
	p, ok := f.people[personID]
	if !ok || p.LeadStatus != domain.StatusStaging {
		return repository.ErrPersonNotFound
	}
	p.LeadStatus = domain.StatusAssigned
	p.AssignedTo = &agentID
	f.people[personID] = p
	return nil
}

func (f *fakeStore) Archive(_ context.Context, id uuid.UUID) error {
	p, ok := f.people[id]
	if !ok {
		return repository.ErrPersonNotFound
	}
	now := p.CreatedAt
	p.ArchivedAt = &now
	f.people[id] = p
	return nil
}

func (f *fakeStore) HardDelete(_ context.Context, id uuid.UUID) error {
	p, ok := f.people[id]
	if !ok || p.LeadStatus != domain.StatusStaging {
		return repository.ErrPersonNotFound
	}
	delete(f.people, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) InsertActivity(_ context.Context, a repository.Activity) error {
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeStore) ListActivities(context.Context, uuid.UUID, int) ([]repository.Activity, error) {
	return nil, nil
}

func newTestService(store *fakeStore) *Service {
	log := logger.New("test")
	return New(store, events.NewInMemoryBus(log), log)
}

func TestUpdateStatusRecordsActivity(t *testing.T) {
	store := newFakeStore()
	id := store.add(domain.StatusAssigned)
	svc := newTestService(store)

	p, err := svc.UpdateStatus(context.Background(), id, domain.StatusContacted, "agent-1")
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if p.LeadStatus != domain.StatusContacted {
		t.Fatalf("expected contacted, got %s", p.LeadStatus)
	}
	if len(store.activities) != 1 || store.activities[0].Kind != repository.ActivityStatusChanged {
		t.Fatalf("expected one status_changed activity, got %+v", store.activities)
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	store := newFakeStore()
	id := store.add(domain.StatusStaging)
	svc := newTestService(store)

	_, err := svc.UpdateStatus(context.Background(), id, domain.StatusConverted, "agent-1")
	if err == nil {
		t.Fatal("expected staging to converted to be rejected")
	}
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusRejectsAssignedTarget(t *testing.T) {
	store := newFakeStore()
	id := store.add(domain.StatusStaging)
	svc := newTestService(store)

	_, err := svc.UpdateStatus(context.Background(), id, domain.StatusAssigned, "agent-1")
	if err == nil {
		t.Fatal("expected manual move into assigned to be rejected")
	}
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestAssignOnlyFromStaging(t *testing.T) {
	store := newFakeStore()
	staged := store.add(domain.StatusStaging)
	contacted := store.add(domain.StatusContacted)
	svc := newTestService(store)
	agent := uuid.New()

	p, err := svc.Assign(context.Background(), staged, agent, "admin")
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if p.AssignedTo == nil || *p.AssignedTo != agent {
		t.Fatalf("expected lead assigned to agent, got %+v", p.AssignedTo)
	}

	if _, err := svc.Assign(context.Background(), contacted, agent, "admin"); err == nil {
		t.Fatal("expected assign of non-staging lead to be rejected")
	}
}

func TestHardDeleteOnlyInStaging(t *testing.T) {
	store := newFakeStore()
	staged := store.add(domain.StatusStaging)
	converted := store.add(domain.StatusConverted)
	svc := newTestService(store)

	if err := svc.HardDelete(context.Background(), staged); err != nil {
		t.Fatalf("HardDelete of staging lead returned error: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != staged {
		t.Fatalf("expected staging lead deleted, got %v", store.deleted)
	}

	err := svc.HardDelete(context.Background(), converted)
	if err == nil {
		t.Fatal("expected hard delete of converted lead to be rejected")
	}
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}
