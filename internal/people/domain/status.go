// Package domain holds the person/lead lifecycle rules.
package domain

// Status is the lead workflow status.
type Status string

const (
	StatusStaging   Status = "staging"
	StatusAssigned  Status = "assigned"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// ClientType distinguishes leads from plain contacts.
type ClientType string

const (
	ClientTypeContact ClientType = "contact"
	ClientTypeLead    ClientType = "lead"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusStaging, StatusAssigned, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusConverted
}

// CanTransition reports whether an agent may move a lead from one status to
// another. The workflow is one-directional (staging → assigned → contacted →
// qualified → converted) except that agents can move freely between
// contacted, qualified and lost, so a lost lead can be reopened. The
// assigned status is owned by the rotation engine and is never a valid
// agent-initiated target.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StatusLost {
		return true
	}

	switch from {
	case StatusAssigned:
		return to == StatusContacted
	case StatusContacted:
		return to == StatusQualified
	case StatusQualified:
		return to == StatusContacted || to == StatusConverted
	case StatusLost:
		return to == StatusContacted || to == StatusQualified
	}
	return false
}

// HardDeletable reports whether a lead in this status may be removed from
// storage entirely. Everything past staging is archived instead.
func HardDeletable(s Status) bool {
	return s == StatusStaging
}
