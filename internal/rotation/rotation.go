// Package rotation provides the fair lead-distribution bounded context.
// Active agents form a priority-ordered ring; a persisted cursor remembers
// the last assignee so distribution stays fair across restarts and across
// concurrent ingestions.
package rotation

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNoEligibleAgent is returned when no active rotation entry exists.
// Callers leave the lead in staging instead of failing the ingestion.
var ErrNoEligibleAgent = errors.New("no eligible agent in rotation")

// Entry is one agent's slot in the rotation ring.
type Entry struct {
	AgentID  uuid.UUID
	IsActive bool
	Priority int
}

// NextAfter selects the next active entry strictly after the cursor in ring
// order. Entries must already be sorted by (priority asc, agent id asc); the
// full set is passed, inactive entries included, so a deactivated cursor
// still anchors its old position and the walk skips forward past it.
// A nil or unknown cursor starts the walk at the top of the ring.
func NextAfter(entries []Entry, cursor *uuid.UUID) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}

	idx := -1
	if cursor != nil {
		for i, e := range entries {
			if e.AgentID == *cursor {
				idx = i
				break
			}
		}
	}

	for step := 1; step <= len(entries); step++ {
		e := entries[(idx+step)%len(entries)]
		if e.IsActive {
			return e, true
		}
	}
	return Entry{}, false
}
