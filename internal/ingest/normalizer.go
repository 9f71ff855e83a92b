// Package ingest implements the lead ingestion pipeline: normalization,
// dedup resolution, rotation assignment and the idempotency ledger, plus
// the inbound HTTP surface feeding it.
package ingest

import (
	"errors"
	"strings"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/phone"
)

// Source identifies where a raw lead entered the system.
type Source string

const (
	SourceEmail   Source = "email"
	SourceWebhook Source = "webhook"
	SourcePixel   Source = "pixel"
	SourceAPI     Source = "api"
)

// Rejection reasons. Recorded in the idempotency ledger; never retried.
var (
	ErrNotALead        = errors.New("not a lead")
	ErrLowConfidence   = errors.New("confidence below threshold")
	ErrMissingIdentity = errors.New("no usable email or phone")
)

// RawLead is the untyped payload of one ingestion event before
// normalization. Handlers and the mailbox sweeper fill it from their
// respective sources; IsLead and Confidence come from the classifier for
// email sources and default to true/1.0 elsewhere.
type RawLead struct {
	Source     Source
	MessageID  string
	FirstName  string
	LastName   string
	Emails     []string
	Phones     []string
	Message    string
	IsLead     bool
	Confidence float64
}

// LeadCandidate is a normalized, accepted ingestion event. Emails are
// lower-cased and trimmed; phones are reduced to digit strings. The first
// element of each set is the display primary, but identity matching uses
// the whole set.
type LeadCandidate struct {
	Source     Source
	MessageID  string
	FirstName  string
	LastName   string
	Emails     []string
	Phones     []string
	Message    string
	Confidence float64
}

// Normalizer turns raw payloads into lead candidates or rejections.
type Normalizer struct {
	threshold float64
	region    string
}

func NewNormalizer(cfg config.IngestConfig) *Normalizer {
	return &Normalizer{
		threshold: cfg.GetConfidenceThreshold(),
		region:    cfg.GetDefaultRegion(),
	}
}

// Normalize validates and canonicalizes one raw lead. Rejections come
// back as ErrNotALead, ErrLowConfidence or ErrMissingIdentity.
func (n *Normalizer) Normalize(raw RawLead) (LeadCandidate, error) {
	if !raw.IsLead {
		return LeadCandidate{}, ErrNotALead
	}
	if raw.Confidence < n.threshold {
		return LeadCandidate{}, ErrLowConfidence
	}

	emails := normalizeEmails(raw.Emails)
	phones := normalizePhones(raw.Phones, n.region)
	if len(emails) == 0 && len(phones) == 0 {
		return LeadCandidate{}, ErrMissingIdentity
	}

	return LeadCandidate{
		Source:     raw.Source,
		MessageID:  strings.TrimSpace(raw.MessageID),
		FirstName:  strings.TrimSpace(raw.FirstName),
		LastName:   strings.TrimSpace(raw.LastName),
		Emails:     emails,
		Phones:     phones,
		Message:    strings.TrimSpace(raw.Message),
		Confidence: raw.Confidence,
	}, nil
}

func normalizeEmails(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in))
		if email == "" || !strings.Contains(email, "@") || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

func normalizePhones(inputs []string, region string) []string {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		digits := phone.Digits(in, region)
		// Anything shorter than a local subscriber number is noise.
		if len(digits) < 7 || seen[digits] {
			continue
		}
		seen[digits] = true
		out = append(out, digits)
	}
	return out
}
