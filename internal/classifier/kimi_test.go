package classifier

import "testing"

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Classification
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"is_lead": true, "confidence": 0.9, "lead": {"first_name": "Jan", "email": "jan@example.com"}}`,
			want:    Classification{IsLead: true, Confidence: 0.9, Lead: LeadData{FirstName: "Jan", Email: "jan@example.com"}},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"is_lead\": false, \"confidence\": 0.2}\n```",
			want:    Classification{IsLead: false, Confidence: 0.2},
		},
		{
			name:    "not json",
			content: "this message looks like a lead to me",
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"is_lead": true, "confidence": 3.5}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVerdict: %v", err)
			}
			if got.IsLead != tt.want.IsLead || got.Confidence != tt.want.Confidence {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			if got.Lead.FirstName != tt.want.Lead.FirstName || got.Lead.Email != tt.want.Lead.Email {
				t.Fatalf("lead fields: got %+v, want %+v", got.Lead, tt.want.Lead)
			}
		})
	}
}
