package mail

import (
	"context"

	"relaychat/internal/pkg/logx"
)

// LogSender writes mail to the log instead of sending it.
type LogSender struct {
	PublicURL string
}

func (s *LogSender) SendVerification(_ context.Context, email, username, token string) error {
	logx.Info("Email disabled, verification link logged instead",
		"email", email,
		"username", username,
		"link", VerificationLink(s.PublicURL, token),
	)
	return nil
}

func (s *LogSender) SendNotification(_ context.Context, recipients []string, _, author string) error {
	logx.Debug("Email disabled, message notification skipped", "author", author, "recipients", len(recipients))
	return nil
}

func (s *LogSender) SendVoiceNotification(_ context.Context, recipients []string, username string) error {
	logx.Debug("Email disabled, voice notification skipped", "username", username, "recipients", len(recipients))
	return nil
}
