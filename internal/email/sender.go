// Package email renders and delivers notification mail.
package email

import "context"

// Sender delivers notification email. The notification module consumes
// this interface; tests substitute fakes.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail, personName, source string) error
	SendTokenDeactivatedEmail(ctx context.Context, toEmail, mailbox, reason string) error
}

// NopSender drops all mail. Used when SMTP is not configured.
type NopSender struct{}

func (NopSender) SendLeadAssignedEmail(context.Context, string, string, string) error { return nil }
func (NopSender) SendTokenDeactivatedEmail(context.Context, string, string, string) error {
	return nil
}
