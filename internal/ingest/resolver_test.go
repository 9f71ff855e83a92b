package ingest

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/people/domain"
	peoplerepo "leadflow_backend/internal/people/repository"
	"leadflow_backend/platform/logger"
)

func testCandidate(messageID string, emails []string, confidence float64) LeadCandidate {
	return LeadCandidate{
		Source:     SourceEmail,
		MessageID:  messageID,
		FirstName:  "Jan",
		LastName:   "de Vries",
		Emails:     emails,
		Confidence: confidence,
	}
}

func TestResolveCreateOnNoMatch(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(testIngestConfig{threshold: 0.5}, logger.New("test"))

	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"a@x.com"}, 0.92))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionCreate {
		t.Fatalf("action = %q, want create", res.Action)
	}
	if res.Person.LeadStatus != domain.StatusStaging || res.Person.NeedsReview {
		t.Fatalf("new person: %+v", res.Person)
	}
	if kinds := store.activityKinds(); len(kinds) != 1 || kinds[0] != peoplerepo.ActivityLeadReceived {
		t.Fatalf("activities = %v", kinds)
	}
}

func TestResolveMergeOnSecondaryEmail(t *testing.T) {
	store := newFakeStore()
	existing, _ := store.CreatePerson(context.Background(), peoplerepo.Person{
		FirstName:      "Johannes",
		Emails:         []string{"primary@x.com", "secondary@x.com"},
		LastConfidence: 0.95,
	})
	r := NewResolver(testIngestConfig{threshold: 0.5}, logger.New("test"))

	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"secondary@x.com", "new@x.com"}, 0.6))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionMerge || res.Person.ID != existing.ID {
		t.Fatalf("resolution = %+v, want merge into %v", res, existing.ID)
	}

	merged := store.people[existing.ID]
	if !overlaps(merged.Emails, []string{"new@x.com"}) {
		t.Fatalf("emails not unioned: %v", merged.Emails)
	}
	// Lower candidate confidence must not overwrite stored fields.
	if merged.FirstName != "Johannes" {
		t.Fatalf("display field overwritten by low-confidence candidate: %q", merged.FirstName)
	}
}

func TestResolveMergeOverwritesOnHigherConfidence(t *testing.T) {
	store := newFakeStore()
	existing, _ := store.CreatePerson(context.Background(), peoplerepo.Person{
		FirstName:      "Johannes",
		Emails:         []string{"a@x.com"},
		LastConfidence: 0.4,
	})
	r := NewResolver(testIngestConfig{threshold: 0.5}, logger.New("test"))

	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"a@x.com"}, 0.9))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionMerge {
		t.Fatalf("action = %q, want merge", res.Action)
	}

	merged := store.people[existing.ID]
	if merged.FirstName != "Jan" || merged.LastConfidence != 0.9 {
		t.Fatalf("high-confidence candidate must overwrite fields: %+v", merged)
	}
}

func TestResolveAmbiguousCreatesReviewRecord(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	_, _ = store.CreatePerson(context.Background(), peoplerepo.Person{Emails: []string{"a@x.com"}, CreatedAt: now.Add(-time.Hour)})
	_, _ = store.CreatePerson(context.Background(), peoplerepo.Person{Emails: []string{"a@x.com"}, CreatedAt: now})
	r := NewResolver(testIngestConfig{threshold: 0.5}, logger.New("test"))

	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"a@x.com"}, 0.9))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionCreate || !res.Person.NeedsReview {
		t.Fatalf("ambiguous match must create a review-flagged person: %+v", res)
	}
	if len(store.people) != 3 {
		t.Fatalf("existing records must not be folded together: %d", len(store.people))
	}

	var reviewed bool
	for _, a := range store.activities {
		if a.Kind == peoplerepo.ActivityDuplicateReview && a.PersonID == res.Person.ID {
			ids, _ := a.Metadata["candidate_person_ids"].([]string)
			if len(ids) != 2 {
				t.Fatalf("review activity lists %d candidates, want 2", len(ids))
			}
			reviewed = true
		}
	}
	if !reviewed {
		t.Fatal("duplicate review activity missing")
	}
}

func TestResolveAmbiguousAutoMergePicksBestTarget(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	_, _ = store.CreatePerson(context.Background(), peoplerepo.Person{Emails: []string{"a@x.com"}, CreatedAt: now})
	older, _ := store.CreatePerson(context.Background(), peoplerepo.Person{Emails: []string{"a@x.com"}, CreatedAt: now.Add(-time.Hour)})
	// Non-staging beats staging even though it is older.
	p := store.people[older.ID]
	p.LeadStatus = domain.StatusContacted
	store.people[older.ID] = p

	r := NewResolver(testIngestConfig{threshold: 0.5, autoMerge: true}, logger.New("test"))
	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"a@x.com"}, 0.9))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionMerge || res.Person.ID != older.ID {
		t.Fatalf("auto-merge target = %v, want non-staging record %v", res.Person.ID, older.ID)
	}
	if len(store.people) != 2 {
		t.Fatal("auto-merge must never create a record or fold existing ones")
	}
}

func TestResolveShortCircuitsProcessedMessage(t *testing.T) {
	store := newFakeStore()
	_ = store.RecordProcessedEmail(context.Background(), ProcessedEmail{
		MessageID: "m-1",
		Source:    SourceEmail,
		Outcome:   OutcomeCreated,
	})
	r := NewResolver(testIngestConfig{threshold: 0.5}, logger.New("test"))

	res, err := r.Resolve(context.Background(), store, testCandidate("m-1", []string{"a@x.com"}, 0.9))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != ActionAlreadyProcessed || res.Prior == nil {
		t.Fatalf("resolution = %+v, want already_processed with prior", res)
	}
	if len(store.people) != 0 {
		t.Fatal("short-circuit must not touch person records")
	}
}
