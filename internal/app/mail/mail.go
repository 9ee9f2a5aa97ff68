/*
Package mail sends account verification links and activity notifications.

NewSender returns an SMTP-backed sender when a host is configured and a log-only sender otherwise,
which keeps local development usable without a mail relay.
*/
package mail

import (
	"context"
)

// Sender delivers the emails the chat server produces.
type Sender interface {
	// SendVerification mails the account verification link to a freshly registered user.
	SendVerification(ctx context.Context, email, username, token string) error

	// SendNotification tells recipients that author posted text while they were away.
	SendNotification(ctx context.Context, recipients []string, text, author string) error

	// SendVoiceNotification tells recipients that username joined the voice channel.
	SendVoiceNotification(ctx context.Context, recipients []string, username string) error
}

// Config holds the SMTP relay settings and the public address used in links.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	PublicURL string
}

// NewSender returns an SMTP sender when cfg.Host is set and a LogSender otherwise.
func NewSender(cfg Config) Sender {
	if cfg.Host == "" {
		return &LogSender{PublicURL: cfg.PublicURL}
	}
	return NewSMTPSender(cfg)
}

// VerificationLink builds the link a user follows to verify their email address.
func VerificationLink(publicURL, token string) string {
	return publicURL + "/verify?token=" + token
}
