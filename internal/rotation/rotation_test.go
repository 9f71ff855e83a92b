package rotation

import (
	"testing"

	"github.com/google/uuid"
)

func agentN(n byte) uuid.UUID {
	var b [16]byte
	b[15] = n
	b[6] = 0x40 // version 4
	b[8] = 0x80 // RFC 4122 variant
	return uuid.UUID(b)
}

func activeRing(n int) []Entry {
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{AgentID: agentN(byte(i + 1)), IsActive: true, Priority: 10})
	}
	return entries
}

func TestNextAfterEmptyRing(t *testing.T) {
	if _, ok := NextAfter(nil, nil); ok {
		t.Fatal("expected no assignee from an empty ring")
	}
}

func TestNextAfterAllInactive(t *testing.T) {
	entries := activeRing(3)
	for i := range entries {
		entries[i].IsActive = false
	}
	if _, ok := NextAfter(entries, nil); ok {
		t.Fatal("expected no assignee when every entry is inactive")
	}
}

func TestNextAfterNilCursorStartsAtTop(t *testing.T) {
	entries := activeRing(3)
	next, ok := NextAfter(entries, nil)
	if !ok || next.AgentID != entries[0].AgentID {
		t.Fatalf("expected first entry for nil cursor, got %v (ok=%v)", next.AgentID, ok)
	}
}

func TestNextAfterWrapsAround(t *testing.T) {
	entries := activeRing(3)
	last := entries[2].AgentID
	next, ok := NextAfter(entries, &last)
	if !ok || next.AgentID != entries[0].AgentID {
		t.Fatalf("expected wraparound to first entry, got %v (ok=%v)", next.AgentID, ok)
	}
}

func TestNextAfterPriorityOrdering(t *testing.T) {
	// Ring order is the caller's sort order; a lower-priority (earlier)
	// entry listed first must be chosen first from a nil cursor.
	entries := []Entry{
		{AgentID: agentN(9), IsActive: true, Priority: 1},
		{AgentID: agentN(1), IsActive: true, Priority: 5},
		{AgentID: agentN(2), IsActive: true, Priority: 5},
	}
	next, ok := NextAfter(entries, nil)
	if !ok || next.AgentID != agentN(9) {
		t.Fatalf("expected priority-1 agent first, got %v", next.AgentID)
	}
}

func TestNextAfterSkipsDeactivatedCursor(t *testing.T) {
	entries := activeRing(3)
	entries[1].IsActive = false
	cursor := entries[1].AgentID
	next, ok := NextAfter(entries, &cursor)
	if !ok || next.AgentID != entries[2].AgentID {
		t.Fatalf("expected walk past inactive cursor to entry 3, got %v", next.AgentID)
	}
}

func TestNextAfterUnknownCursorStartsAtTop(t *testing.T) {
	entries := activeRing(3)
	stranger := agentN(99)
	next, ok := NextAfter(entries, &stranger)
	if !ok || next.AgentID != entries[0].AgentID {
		t.Fatalf("expected top of ring for unknown cursor, got %v", next.AgentID)
	}
}

// TestNextAfterFairness drives M assignments around an N-agent ring and
// checks every agent lands within one assignment of M/N.
func TestNextAfterFairness(t *testing.T) {
	const n = 5
	const m = 103

	entries := activeRing(n)
	counts := make(map[uuid.UUID]int, n)
	var cursor *uuid.UUID

	for i := 0; i < m; i++ {
		next, ok := NextAfter(entries, cursor)
		if !ok {
			t.Fatalf("assignment %d found no assignee", i)
		}
		counts[next.AgentID]++
		c := next.AgentID
		cursor = &c
	}

	floor := m / n
	ceil := floor
	if m%n != 0 {
		ceil++
	}
	for _, e := range entries {
		got := counts[e.AgentID]
		if got < floor || got > ceil {
			t.Errorf("agent %v received %d assignments, want between %d and %d", e.AgentID, got, floor, ceil)
		}
	}
}

// TestNextAfterDeactivationMidSequence verifies a deactivated agent receives
// zero assignments from the next decision point onward.
func TestNextAfterDeactivationMidSequence(t *testing.T) {
	entries := activeRing(3)
	victim := entries[1].AgentID
	var cursor *uuid.UUID

	for i := 0; i < 10; i++ {
		next, ok := NextAfter(entries, cursor)
		if !ok {
			t.Fatalf("assignment %d found no assignee", i)
		}
		c := next.AgentID
		cursor = &c
	}

	entries[1].IsActive = false
	for i := 0; i < 20; i++ {
		next, ok := NextAfter(entries, cursor)
		if !ok {
			t.Fatalf("post-deactivation assignment %d found no assignee", i)
		}
		if next.AgentID == victim {
			t.Fatalf("deactivated agent still assigned on iteration %d", i)
		}
		c := next.AgentID
		cursor = &c
	}
}
