package ingest

import (
	"context"
	"fmt"
	"strings"

	"leadflow_backend/internal/people/domain"
	peoplerepo "leadflow_backend/internal/people/repository"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Action is the dedup resolver's verdict on a candidate.
type Action string

const (
	ActionCreate           Action = "create"
	ActionMerge            Action = "merge"
	ActionAlreadyProcessed Action = "already_processed"
)

// Resolution is the outcome of resolving one candidate against the
// existing person records. Prior is set only for ActionAlreadyProcessed.
type Resolution struct {
	Action Action
	Person peoplerepo.Person
	Prior  *ProcessedEmail
}

// Resolver matches candidates against existing people and decides
// create versus merge. It never folds two existing records together;
// ambiguous multi-matches are flagged for review unless auto-merge is
// switched on.
type Resolver struct {
	autoMerge bool
	log       *logger.Logger
}

func NewResolver(cfg config.IngestConfig, log *logger.Logger) *Resolver {
	return &Resolver{autoMerge: cfg.GetAmbiguousAutoMerge(), log: log}
}

// Resolve runs the dedup decision for one candidate against the given
// store. The store is expected to be transaction-bound; every write here
// commits or rolls back with the rest of the pipeline run.
func (r *Resolver) Resolve(ctx context.Context, store Store, cand LeadCandidate) (Resolution, error) {
	if cand.MessageID != "" {
		prior, err := store.GetProcessedEmail(ctx, cand.MessageID)
		if err != nil {
			return Resolution{}, err
		}
		if prior != nil {
			return Resolution{Action: ActionAlreadyProcessed, Prior: prior}, nil
		}
	}

	matches, err := store.FindActiveByIdentity(ctx, cand.Emails, cand.Phones)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by identity: %w", err)
	}

	switch len(matches) {
	case 0:
		return r.create(ctx, store, cand, false, nil)
	case 1:
		return r.merge(ctx, store, cand, matches[0])
	default:
		target := bestMatch(matches)
		if r.autoMerge {
			r.log.Warn("ingest: ambiguous identity auto-merged",
				"message_id", cand.MessageID, "target", target.ID, "matches", len(matches))
			return r.merge(ctx, store, cand, target)
		}
		return r.create(ctx, store, cand, true, matches)
	}
}

func (r *Resolver) create(ctx context.Context, store Store, cand LeadCandidate, needsReview bool, matches []peoplerepo.Person) (Resolution, error) {
	person, err := store.CreatePerson(ctx, peoplerepo.Person{
		FirstName:      cand.FirstName,
		LastName:       cand.LastName,
		Emails:         cand.Emails,
		Phones:         cand.Phones,
		ClientType:     domain.ClientTypeLead,
		LeadStatus:     domain.StatusStaging,
		LeadSource:     string(cand.Source),
		LastConfidence: cand.Confidence,
		NeedsReview:    needsReview,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("create person: %w", err)
	}

	if err := store.InsertActivity(ctx, peoplerepo.Activity{
		PersonID: person.ID,
		Kind:     peoplerepo.ActivityLeadReceived,
		Summary:  fmt.Sprintf("Lead received via %s", cand.Source),
		Metadata: map[string]any{
			"source":     string(cand.Source),
			"confidence": cand.Confidence,
			"message":    truncate(cand.Message, 500),
		},
		Actor: "pipeline",
	}); err != nil {
		return Resolution{}, err
	}

	if needsReview {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID.String())
		}
		if err := store.InsertActivity(ctx, peoplerepo.Activity{
			PersonID: person.ID,
			Kind:     peoplerepo.ActivityDuplicateReview,
			Summary:  fmt.Sprintf("Candidate matched %d existing records; manual merge required", len(matches)),
			Metadata: map[string]any{"candidate_person_ids": ids},
			Actor:    "pipeline",
		}); err != nil {
			return Resolution{}, err
		}
	}

	return Resolution{Action: ActionCreate, Person: person}, nil
}

func (r *Resolver) merge(ctx context.Context, store Store, cand LeadCandidate, target peoplerepo.Person) (Resolution, error) {
	person, err := store.MergePerson(ctx, target.ID, peoplerepo.MergeFields{
		Emails:          cand.Emails,
		Phones:          cand.Phones,
		FirstName:       cand.FirstName,
		LastName:        cand.LastName,
		LeadSource:      string(cand.Source),
		Confidence:      cand.Confidence,
		OverwriteFields: cand.Confidence > target.LastConfidence,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("merge person: %w", err)
	}

	if err := store.InsertActivity(ctx, peoplerepo.Activity{
		PersonID: person.ID,
		Kind:     peoplerepo.ActivityLeadMerged,
		Summary:  fmt.Sprintf("New %s signal folded into existing record", cand.Source),
		Metadata: map[string]any{
			"source":     string(cand.Source),
			"confidence": cand.Confidence,
			"message":    truncate(cand.Message, 500),
		},
		Actor: "pipeline",
	}); err != nil {
		return Resolution{}, err
	}

	return Resolution{Action: ActionMerge, Person: person}, nil
}

// bestMatch picks the canonical target among multiple identity matches:
// non-staging records beat staging ones, then the most recently created
// wins. Ties on both are broken by id for determinism.
func bestMatch(matches []peoplerepo.Person) peoplerepo.Person {
	best := matches[0]
	for _, m := range matches[1:] {
		if betterMatch(m, best) {
			best = m
		}
	}
	return best
}

func betterMatch(a, b peoplerepo.Person) bool {
	aStaging := a.LeadStatus == domain.StatusStaging
	bStaging := b.LeadStatus == domain.StatusStaging
	if aStaging != bStaging {
		return !aStaging
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
