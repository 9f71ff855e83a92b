package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/people/domain"
	peoplerepo "leadflow_backend/internal/people/repository"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/platform/logger"
)

// Pipeline run results.
const (
	OutcomeCreated          = "created"
	OutcomeMerged           = "merged"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeRejected         = "rejected"
)

// Ledger outcome for a created lead that could not be assigned.
const outcomeCreatedUnassigned = "created_unassigned"

// Outcome is the terminal result of one pipeline run. Reason carries the
// rejection reason, the prior ledger outcome for re-deliveries, or
// "no_eligible_agent" when the lead stayed in staging.
type Outcome struct {
	Result   string     `json:"result"`
	Reason   string     `json:"reason,omitempty"`
	PersonID *uuid.UUID `json:"personId,omitempty"`
	AgentID  *uuid.UUID `json:"agentId,omitempty"`
}

// Pipeline sequences normalization, dedup resolution, rotation
// assignment and ledger bookkeeping for each ingestion event. All writes
// for one candidate happen in a single unit.
type Pipeline struct {
	units      Units
	normalizer *Normalizer
	resolver   *Resolver
	eventBus   events.Bus
	log        *logger.Logger
}

func NewPipeline(units Units, normalizer *Normalizer, resolver *Resolver, eventBus events.Bus, log *logger.Logger) *Pipeline {
	return &Pipeline{
		units:      units,
		normalizer: normalizer,
		resolver:   resolver,
		eventBus:   eventBus,
		log:        log,
	}
}

// Ingest runs one raw lead through the pipeline. Rejections and
// re-deliveries are valid terminal outcomes, not errors; an error means
// the candidate was left unprocessed and may be retried.
func (p *Pipeline) Ingest(ctx context.Context, raw RawLead) (Outcome, error) {
	cand, err := p.normalizer.Normalize(raw)
	if err != nil {
		reason := rejectionReason(err)
		if reason == "" {
			return Outcome{}, err
		}
		return p.reject(ctx, raw, reason)
	}

	p.eventBus.Publish(ctx, events.LeadReceived{
		BaseEvent: events.NewBaseEvent(),
		Source:    string(cand.Source),
		MessageID: cand.MessageID,
	})

	var out Outcome
	var post []events.Event

	err = p.units.Run(ctx, func(ctx context.Context, s Store) error {
		out = Outcome{}
		post = post[:0]

		res, err := p.resolver.Resolve(ctx, s, cand)
		if err != nil {
			return err
		}
		if res.Action == ActionAlreadyProcessed {
			out = outcomeFromPrior(res.Prior)
			return nil
		}

		person := res.Person
		out.PersonID = &person.ID
		ledgerOutcome := ""
		switch res.Action {
		case ActionCreate:
			out.Result = OutcomeCreated
			ledgerOutcome = OutcomeCreated
			post = append(post, events.LeadCreated{
				BaseEvent:  events.NewBaseEvent(),
				PersonID:   person.ID,
				Source:     string(cand.Source),
				Confidence: cand.Confidence,
			})
		case ActionMerge:
			out.Result = OutcomeMerged
			ledgerOutcome = OutcomeMerged
			post = append(post, events.LeadMerged{
				BaseEvent: events.NewBaseEvent(),
				PersonID:  person.ID,
				Source:    string(cand.Source),
				MessageID: cand.MessageID,
			})
		}

		if needsAssignment(person) {
			agentID, err := s.ClaimNextAssignee(ctx)
			switch {
			case errors.Is(err, rotation.ErrNoEligibleAgent):
				out.Reason = "no_eligible_agent"
				if res.Action == ActionCreate {
					ledgerOutcome = outcomeCreatedUnassigned
				}
			case err != nil:
				return err
			default:
				if err := s.AssignPerson(ctx, person.ID, agentID); err != nil {
					return err
				}
				if err := s.InsertActivity(ctx, peoplerepo.Activity{
					PersonID: person.ID,
					Kind:     peoplerepo.ActivityLeadAssigned,
					Summary:  "Lead assigned by rotation",
					Metadata: map[string]any{"agent_id": agentID.String()},
					Actor:    "pipeline",
				}); err != nil {
					return err
				}
				out.AgentID = &agentID
				post = append(post, events.LeadAssigned{
					BaseEvent:  events.NewBaseEvent(),
					PersonID:   person.ID,
					AgentID:    agentID,
					Source:     string(cand.Source),
					PersonName: displayName(person),
				})
			}
		}

		if cand.MessageID != "" {
			return s.RecordProcessedEmail(ctx, ProcessedEmail{
				MessageID:  cand.MessageID,
				PersonID:   &person.ID,
				Source:     cand.Source,
				Confidence: cand.Confidence,
				Outcome:    ledgerOutcome,
			})
		}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline unit: %w", err)
	}

	for _, e := range post {
		p.eventBus.Publish(ctx, e)
	}
	p.log.PipelineItem(string(raw.Source), raw.MessageID, outcomeLabel(out))
	return out, nil
}

// AlreadyProcessed reports whether a message id has a ledger entry. The
// sweeper uses it to avoid fetching and classifying seen messages; the
// pipeline re-checks inside its own transaction.
func (p *Pipeline) AlreadyProcessed(ctx context.Context, messageID string) (bool, error) {
	var done bool
	err := p.units.Run(ctx, func(ctx context.Context, s Store) error {
		prior, err := s.GetProcessedEmail(ctx, messageID)
		if err != nil {
			return err
		}
		done = prior != nil
		return nil
	})
	return done, err
}

// reject records a normalization rejection in the ledger so re-delivery
// of the same message short-circuits instead of re-classifying.
func (p *Pipeline) reject(ctx context.Context, raw RawLead, reason string) (Outcome, error) {
	out := Outcome{Result: OutcomeRejected, Reason: reason}
	if strings.TrimSpace(raw.MessageID) == "" {
		p.log.PipelineItem(string(raw.Source), raw.MessageID, outcomeLabel(out))
		return out, nil
	}

	err := p.units.Run(ctx, func(ctx context.Context, s Store) error {
		prior, err := s.GetProcessedEmail(ctx, raw.MessageID)
		if err != nil {
			return err
		}
		if prior != nil {
			out = outcomeFromPrior(prior)
			return nil
		}
		return s.RecordProcessedEmail(ctx, ProcessedEmail{
			MessageID:  strings.TrimSpace(raw.MessageID),
			Source:     raw.Source,
			Confidence: raw.Confidence,
			Outcome:    OutcomeRejected + "_" + reason,
		})
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record rejection: %w", err)
	}

	p.log.PipelineItem(string(raw.Source), raw.MessageID, outcomeLabel(out))
	return out, nil
}

func needsAssignment(p peoplerepo.Person) bool {
	return p.LeadStatus == domain.StatusStaging && p.AssignedTo == nil && !p.NeedsReview
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotALead):
		return "not_a_lead"
	case errors.Is(err, ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, ErrMissingIdentity):
		return "missing_identity"
	default:
		return ""
	}
}

func outcomeFromPrior(prior *ProcessedEmail) Outcome {
	return Outcome{
		Result:   OutcomeAlreadyProcessed,
		Reason:   prior.Outcome,
		PersonID: prior.PersonID,
	}
}

func outcomeLabel(out Outcome) string {
	if out.Reason == "" {
		return out.Result
	}
	return out.Result + "/" + out.Reason
}

func displayName(p peoplerepo.Person) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name != "" {
		return name
	}
	if len(p.Emails) > 0 {
		return p.Emails[0]
	}
	if len(p.Phones) > 0 {
		return p.Phones[0]
	}
	return p.ID.String()
}
