// Package gmail implements the mailbox provider client against the
// Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadflow_backend/internal/mailbox"
	"leadflow_backend/platform/logger"
)

const oauthTokenURL = "https://oauth2.googleapis.com/token"

// Client talks to the Gmail API for one request's credentials at a time.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	log          *logger.Logger
}

// New creates a Gmail API client. baseURL is overridable for tests.
func New(baseURL, clientID, clientSecret string, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          log,
	}
}

// ValidateToken probes the profile endpoint with the access token.
func (c *Client) ValidateToken(ctx context.Context, creds mailbox.Credentials) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/gmail/v1/users/me/profile", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return mailbox.ErrTokenInvalid
	default:
		return fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}
}

// RefreshToken exchanges the refresh token at the OAuth token endpoint.
func (c *Client) RefreshToken(ctx context.Context, creds mailbox.Credentials) (mailbox.RefreshedToken, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return mailbox.RefreshedToken{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mailbox.RefreshedToken{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		// invalid_grant: the user revoked access or the token expired
		var oauthErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&oauthErr)
		c.log.Warn("gmail: refresh rejected", "oauth_error", oauthErr.Error)
		return mailbox.RefreshedToken{}, mailbox.ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return mailbox.RefreshedToken{}, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return mailbox.RefreshedToken{}, fmt.Errorf("decode response: %w", err)
	}

	return mailbox.RefreshedToken{
		AccessToken: body.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// ListRecentMessages returns message IDs received after the given time.
func (c *Client) ListRecentMessages(ctx context.Context, creds mailbox.Credentials, since time.Time, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("after:%d", since.Unix()))
	params.Set("maxResults", strconv.Itoa(maxResults))

	reqURL := fmt.Sprintf("%s/gmail/v1/users/me/messages?%s", c.baseURL, params.Encode())
	var body struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.doGet(ctx, creds, reqURL, &body); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(body.Messages))
	for _, m := range body.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage fetches one full message and flattens it to headers + text body.
func (c *Client) GetMessage(ctx context.Context, creds mailbox.Credentials, id string) (mailbox.Message, error) {
	reqURL := fmt.Sprintf("%s/gmail/v1/users/me/messages/%s?format=full", c.baseURL, url.PathEscape(id))

	var raw apiMessage
	if err := c.doGet(ctx, creds, reqURL, &raw); err != nil {
		return mailbox.Message{}, err
	}
	return raw.toMessage(), nil
}

func (c *Client) doGet(ctx context.Context, creds mailbox.Credentials, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("gmail: request failed", "error", err, "url", reqURL)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - continue to decode
	case http.StatusUnauthorized, http.StatusForbidden:
		return mailbox.ErrTokenInvalid
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: status %d", resp.StatusCode)
	default:
		c.log.Error("gmail: upstream error", "status", resp.StatusCode, "url", reqURL)
		return fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiMessage is the raw Gmail message resource (format=full).
type apiMessage struct {
	ID           string  `json:"id"`
	InternalDate string  `json:"internalDate"`
	Payload      apiPart `json:"payload"`
}

type apiPart struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []apiPart `json:"parts"`
}

func (a *apiMessage) toMessage() mailbox.Message {
	msg := mailbox.Message{ID: a.ID}

	for _, h := range a.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.From = h.Value
		case "to":
			msg.To = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}

	if ms, err := strconv.ParseInt(a.InternalDate, 10, 64); err == nil {
		msg.Received = time.UnixMilli(ms)
	}
	msg.Body = extractText(a.Payload)
	return msg
}

// extractText walks the MIME tree depth-first and returns the first
// text/plain part, falling back to the top-level body.
func extractText(p apiPart) string {
	if p.MimeType == "text/plain" && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for _, part := range p.Parts {
		if text := extractText(part); text != "" {
			return text
		}
	}
	if p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}
