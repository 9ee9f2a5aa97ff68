package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"relaychat/internal/pkg/logx"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #8a2be2;">Welcome to RelayChat!</h1>
  <p>Hi <strong>{{.Username}}</strong>,</p>
  <p>Thanks for registering! Please verify your email address to activate your account.</p>
  <p style="text-align: center; margin: 30px 0;"><a href="{{.Link}}">Verify Email</a></p>
  <p style="color: #666; font-size: 14px;">Or copy this link: {{.Link}}</p>
</div>`))

	messageTmpl = template.Must(template.New("message").Parse(`<h2>New message in RelayChat</h2>
<p><strong>{{.Author}}</strong> says:</p>
<blockquote style="background: #f0f0f0; padding: 15px; border-left: 4px solid #667eea;">{{.Text}}</blockquote>
<p><a href="{{.URL}}">Go to Chat</a></p>`))

	voiceTmpl = template.Must(template.New("voice").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #8a2be2;">Voice Channel Activity</h2>
  <p><strong>{{.Username}}</strong> has joined the voice channel!</p>
  <p style="text-align: center; margin: 30px 0;"><a href="{{.URL}}">Join Voice Chat</a></p>
  <p style="color: #666; font-size: 12px; text-align: center;">You received this notification because you have notifications enabled.</p>
</div>`))
)

// sendFunc matches smtp.SendMail so tests can capture outgoing mail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers HTML mail through an SMTP relay.
type SMTPSender struct {
	cfg  Config
	addr string
	auth smtp.Auth
	send sendFunc
}

// NewSMTPSender builds a sender for the relay described by cfg.
func NewSMTPSender(cfg Config) *SMTPSender {
	s := &SMTPSender{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) SendVerification(ctx context.Context, email, username, token string) error {
	link := VerificationLink(s.cfg.PublicURL, token)
	body, err := render(verificationTmpl, map[string]string{"Username": username, "Link": link})
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, email, "Verify your RelayChat email", body); err != nil {
		return err
	}
	logx.Info("Verification email sent", "email", email)
	return nil
}

func (s *SMTPSender) SendNotification(ctx context.Context, recipients []string, text, author string) error {
	body, err := render(messageTmpl, map[string]string{"Author": author, "Text": text, "URL": s.cfg.PublicURL})
	if err != nil {
		return err
	}
	return s.fanOut(ctx, recipients, "New message from "+author, body)
}

func (s *SMTPSender) SendVoiceNotification(ctx context.Context, recipients []string, username string) error {
	body, err := render(voiceTmpl, map[string]string{"Username": username, "URL": s.cfg.PublicURL})
	if err != nil {
		return err
	}
	return s.fanOut(ctx, recipients, username+" joined voice chat", body)
}

// fanOut mails each recipient separately so one bad address does not stop the rest.
func (s *SMTPSender) fanOut(ctx context.Context, recipients []string, subject string, body []byte) error {
	var errList []error
	for _, to := range recipients {
		if err := s.deliver(ctx, to, subject, body); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errList, err)...)
			}
			logx.Error(err, "Failed to send notification", "email", to)
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.cfg.From, to, subject, body, time.Now())
	if err := s.send(s.addr, s.auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func render(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s mail: %w", tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}

func buildMessage(from, to, subject string, body []byte, now time.Time) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k + ": " + v + "\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	buf.WriteString("\r\n")
	buf.Write(bytes.ReplaceAll(body, []byte("\n"), []byte("\r\n")))
	if !strings.HasSuffix(buf.String(), "\r\n") {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
