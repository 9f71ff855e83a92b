package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity kinds written by the pipeline and the people service.
const (
	ActivityLeadReceived    = "lead_received"
	ActivityLeadMerged      = "lead_merged"
	ActivityLeadAssigned    = "lead_assigned"
	ActivityStatusChanged   = "status_changed"
	ActivityDuplicateReview = "duplicate_review"
)

// Activity is one append-only audit trail entry on a person.
type Activity struct {
	ID        uuid.UUID
	PersonID  uuid.UUID
	Kind      string
	Summary   string
	Metadata  map[string]any
	Actor     string
	CreatedAt time.Time
}

// InsertActivity appends an audit entry for a person.
func (r *Repository) InsertActivity(ctx context.Context, a Activity) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO activities (person_id, kind, summary, metadata, actor)
		VALUES ($1, $2, $3, $4, $5)
	`, a.PersonID, a.Kind, a.Summary, metadata, a.Actor)
	return err
}

// ListActivities returns the audit trail for a person, newest first.
func (r *Repository) ListActivities(ctx context.Context, personID uuid.UUID, limit int) ([]Activity, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, person_id, kind, summary, metadata, actor, created_at
		FROM activities
		WHERE person_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, personID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Activity
	for rows.Next() {
		var a Activity
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.PersonID, &a.Kind, &a.Summary, &metadata, &a.Actor, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &a.Metadata)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
