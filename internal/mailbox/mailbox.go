// Package mailbox manages OAuth mailbox tokens and message access for
// the agents whose inboxes feed the ingestion pipeline.
package mailbox

import (
	"context"
	"errors"
	"time"
)

// ErrTokenInvalid signals a token the provider no longer accepts and that
// cannot be refreshed. The owning record must be deactivated.
var ErrTokenInvalid = errors.New("mailbox token invalid")

// Message is a single inbox message as returned by the provider.
type Message struct {
	ID       string
	From     string
	To       string
	Subject  string
	Body     string
	Received time.Time
}

// Credentials is the live token pair handed to the provider client.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// RefreshedToken is the result of a successful refresh grant.
type RefreshedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Client is the provider-side mailbox API. Implementations wrap a real
// mail provider; tests substitute fakes.
type Client interface {
	// ValidateToken probes the access token. ErrTokenInvalid means the
	// token is rejected; other errors are transient upstream failures.
	ValidateToken(ctx context.Context, creds Credentials) error

	// RefreshToken exchanges the refresh token for a new access token.
	// ErrTokenInvalid means the grant itself was revoked.
	RefreshToken(ctx context.Context, creds Credentials) (RefreshedToken, error)

	// ListRecentMessages returns IDs of messages received since the
	// given time, newest first, capped at maxResults.
	ListRecentMessages(ctx context.Context, creds Credentials, since time.Time, maxResults int) ([]string, error)

	// GetMessage fetches one full message by provider ID.
	GetMessage(ctx context.Context, creds Credentials, id string) (Message, error)
}
