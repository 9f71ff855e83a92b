package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// Config for the Kimi-backed classifier.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// KimiClassifier scores messages with Moonshot's OpenAI-compatible
// chat completions API.
type KimiClassifier struct {
	config Config
	client *http.Client
	log    *logger.Logger
}

func NewKimi(cfg Config, log *logger.Logger) *KimiClassifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moonshot.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "kimi-k2-turbo-preview"
	}
	return &KimiClassifier{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

const systemPrompt = `You classify inbound email for a sales team.
Decide whether the message is a genuine sales lead (a person or company
expressing interest in our services) as opposed to newsletters, invoices,
automated notifications, spam, or internal mail.

Respond with ONLY a JSON object, no prose:
{"is_lead": bool, "confidence": 0.0-1.0, "lead": {"first_name": "", "last_name": "", "email": "", "phone": "", "summary": ""}}

Extract contact fields from the message itself when present; the sender
address is the fallback email. Keep summary to one sentence.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends one message for scoring. Transport and upstream
// failures come back as apperr.Unavailable so the caller can retry on
// the next trigger.
func (k *KimiClassifier) Classify(ctx context.Context, msg RawMessage) (Classification, error) {
	payload := map[string]interface{}{
		"model": k.config.Model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: formatMessage(msg)},
		},
		"temperature":     0.0,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return Classification{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+k.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(httpReq)
	if err != nil {
		k.log.Error("classifier: request failed", "error", err)
		return Classification{}, apperr.Wrap(apperr.KindUnavailable, "classifier upstream unreachable", err).WithCode("upstream_unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		k.log.Error("classifier: upstream error", "status", resp.StatusCode)
		return Classification{}, apperr.Unavailable(fmt.Sprintf("classifier upstream status %d", resp.StatusCode)).WithCode("upstream_unavailable")
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Classification{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Error != nil {
		return Classification{}, apperr.Unavailable("classifier error: " + body.Error.Message).WithCode("upstream_unavailable")
	}
	if len(body.Choices) == 0 {
		return Classification{}, fmt.Errorf("empty completion")
	}

	return parseVerdict(body.Choices[0].Message.Content)
}

func formatMessage(msg RawMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n\n", msg.Subject)
	b.WriteString(msg.Body)
	return b.String()
}

// parseVerdict decodes the model's JSON verdict, tolerating code fences
// some models wrap around JSON output.
func parseVerdict(content string) (Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var verdict Classification
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return Classification{}, fmt.Errorf("parse verdict: %w", err)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return Classification{}, fmt.Errorf("confidence %v out of range", verdict.Confidence)
	}
	return verdict, nil
}
