package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"relaychat/internal/app/history"
	"relaychat/internal/pkg/errs"
)

// handleMessage appends a text message to the history and broadcasts it.
func (h *Hub) handleMessage(c *Client, s *Session, payload json.RawMessage) {
	var req ChatPayload
	if !decodePayload(c, TypeMessage, payload, &req) {
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		c.SendError(errs.NewError(errs.ErrMessageEmpty))
		return
	}
	if len(text) > MaxContentBytes {
		c.SendError(errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
		return
	}

	h.postMessage(c, s, &text, nil)
}

// postMessage builds a message authored by s, appends it and broadcasts it to every
// connection once the history store accepted it.
func (h *Hub) postMessage(c *Client, s *Session, text *string, file *history.Attachment) bool {
	msg := history.Message{
		Text:         text,
		Author:       s.Username,
		AuthorAvatar: cloneString(s.Avatar),
		Timestamp:    time.Now().UnixMilli(),
		File:         file,
	}

	ctx, cancel := h.storeContext()
	defer cancel()

	err := h.history.Append(ctx, msg, func(m history.Message) {
		h.Broadcast(TypeMessage, m)
	})
	h.metrics.recordAppend(err)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to persist chat message")
		c.SendError(errs.NewError(errs.ErrUnknown))
		return false
	}

	h.notifyMessage(s, msg)
	return true
}

// notifyMessage mails opted-in users who are not connected, never the author.
func (h *Hub) notifyMessage(author *Session, msg history.Message) {
	summary := ""
	switch {
	case msg.Text != nil:
		summary = *msg.Text
	case msg.File != nil:
		summary = fmt.Sprintf("sent a file: %s", msg.File.OriginalName)
	}

	h.goBackground("message_notification", func(ctx context.Context) error {
		recipients, err := h.offlineRecipients(ctx, author.Email)
		if err != nil || len(recipients) == 0 {
			return err
		}
		return h.mailer.SendNotification(ctx, recipients, summary, author.Username)
	})
}

// offlineRecipients lists opted-in users who have no live session, excluding exclude.
func (h *Hub) offlineRecipients(ctx context.Context, exclude string) ([]string, error) {
	users, err := h.users.WithNotificationsEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notification recipients: %w", err)
	}

	online := h.connectedEmails()

	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email == exclude {
			continue
		}
		if _, ok := online[u.Email]; ok {
			continue
		}
		recipients = append(recipients, u.Email)
	}
	return recipients, nil
}

// relayTyping forwards a typing indicator to everyone but the sender. There is no server-side
// timeout; clients send the matching stop.
func (h *Hub) relayTyping(c *Client, s *Session, t MessageType) {
	h.BroadcastExcept(t, TypingPayload{Username: s.Username}, c)
}

// handleClearHistory empties the history for admins. Non-admin attempts get no reply.
func (h *Hub) handleClearHistory(c *Client, s *Session, _ json.RawMessage) {
	if !h.isAdmin(c) {
		c.logger.Warn().Str("username", s.Username).Msg("Ignoring clear_history from non-admin connection")
		return
	}

	ctx, cancel := h.storeContext()
	defer cancel()

	err := h.history.Clear(ctx, func() {
		h.Broadcast(TypeClearMessages, nil)
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear chat history")
		c.SendError(errs.NewError(errs.ErrUnknown))
		return
	}

	c.logger.Info().Str("username", s.Username).Msg("Chat history cleared by admin")
}
