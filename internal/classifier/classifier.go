// Package classifier decides whether an inbound message is a sales lead
// and extracts contact fields from it.
package classifier

import "context"

// RawMessage is the classifier's view of an inbound message.
type RawMessage struct {
	From    string
	Subject string
	Body    string
}

// LeadData holds contact fields extracted from a message.
type LeadData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Summary   string `json:"summary"`
}

// Classification is the verdict on one message.
type Classification struct {
	IsLead     bool     `json:"is_lead"`
	Confidence float64  `json:"confidence"`
	Lead       LeadData `json:"lead"`
}

// LeadClassifier scores a raw message. Implementations call an external
// model; tests substitute fakes.
type LeadClassifier interface {
	Classify(ctx context.Context, msg RawMessage) (Classification, error)
}
