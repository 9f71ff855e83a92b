package ingest

import (
	"errors"
	"testing"
)

type testIngestConfig struct {
	threshold float64
	autoMerge bool
}

func (c testIngestConfig) GetConfidenceThreshold() float64 { return c.threshold }
func (c testIngestConfig) GetAmbiguousAutoMerge() bool     { return c.autoMerge }
func (c testIngestConfig) GetSubmitSharedSecret() string   { return "submit-secret" }
func (c testIngestConfig) GetWebhookSigningSecret() string { return "hook-secret" }
func (c testIngestConfig) GetDefaultRegion() string        { return "NL" }

func TestNormalizeRejections(t *testing.T) {
	n := NewNormalizer(testIngestConfig{threshold: 0.5})

	tests := []struct {
		name string
		raw  RawLead
		want error
	}{
		{
			name: "classifier says not a lead",
			raw:  RawLead{Source: SourceEmail, IsLead: false, Confidence: 0.9, Emails: []string{"a@x.com"}},
			want: ErrNotALead,
		},
		{
			name: "low confidence email",
			raw:  RawLead{Source: SourceEmail, IsLead: true, Confidence: 0.3, Emails: []string{"a@x.com"}},
			want: ErrLowConfidence,
		},
		{
			name: "low confidence webhook",
			raw:  RawLead{Source: SourceWebhook, IsLead: true, Confidence: 0.49, Emails: []string{"a@x.com"}},
			want: ErrLowConfidence,
		},
		{
			name: "no identity at all",
			raw:  RawLead{Source: SourceAPI, IsLead: true, Confidence: 1},
			want: ErrMissingIdentity,
		},
		{
			name: "identity dissolves under normalization",
			raw:  RawLead{Source: SourcePixel, IsLead: true, Confidence: 1, Emails: []string{"  ", "no-at-sign"}, Phones: []string{"123"}},
			want: ErrMissingIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got err %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNormalizeCanonicalizesIdentity(t *testing.T) {
	n := NewNormalizer(testIngestConfig{threshold: 0.5})

	cand, err := n.Normalize(RawLead{
		Source:     SourceEmail,
		MessageID:  " msg-1 ",
		FirstName:  " Jan ",
		LastName:   "de Vries",
		Emails:     []string{" Jan.DeVries@Example.COM ", "jan.devries@example.com", "second@example.com"},
		Phones:     []string{"+31 6 1234 5678", "06 12345678"},
		IsLead:     true,
		Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if cand.MessageID != "msg-1" || cand.FirstName != "Jan" {
		t.Fatalf("fields not trimmed: %+v", cand)
	}
	wantEmails := []string{"jan.devries@example.com", "second@example.com"}
	if len(cand.Emails) != len(wantEmails) {
		t.Fatalf("emails = %v, want %v", cand.Emails, wantEmails)
	}
	for i := range wantEmails {
		if cand.Emails[i] != wantEmails[i] {
			t.Fatalf("emails = %v, want %v", cand.Emails, wantEmails)
		}
	}
	// Local and international spellings of the same number collapse.
	if len(cand.Phones) != 1 || cand.Phones[0] != "31612345678" {
		t.Fatalf("phones = %v, want [31612345678]", cand.Phones)
	}
}

func TestNormalizeThresholdBoundary(t *testing.T) {
	n := NewNormalizer(testIngestConfig{threshold: 0.5})

	if _, err := n.Normalize(RawLead{Source: SourceEmail, IsLead: true, Confidence: 0.5, Emails: []string{"a@x.com"}}); err != nil {
		t.Fatalf("confidence at threshold must pass, got %v", err)
	}
}
