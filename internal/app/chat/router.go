package chat

import (
	"encoding/json"

	"relaychat/internal/pkg/errs"
)

// authFree lists the types an unauthenticated connection may send.
var authFree = map[MessageType]bool{
	TypeRegister:   true,
	TypeLogin:      true,
	TypeTokenLogin: true,
	TypeAdminLogin: true,
}

// unknownFrameType labels frames whose type the server does not handle, so client input
// cannot create new metric series.
const unknownFrameType MessageType = "unknown"

// HandleFrame routes one inbound frame from c. A frame that does not decode as a JSON envelope
// is treated as a binary upload frame.
func (h *Hub) HandleFrame(c *Client, frame []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.handleBinary(c, frame)
		return
	}

	handler, known := h.routes[env.Type]
	if !known {
		h.metrics.recordFrame(unknownFrameType)
		c.logger.Debug().Str("msg_type", string(env.Type)).Msg("Ignoring unsupported message type")
		return
	}
	h.metrics.recordFrame(env.Type)

	var session *Session
	if !authFree[env.Type] {
		session = h.Session(c)
		if session == nil {
			c.SendError(errs.NewError(errs.ErrNotAuthenticated))
			return
		}
	}

	handler(c, session, env.Payload)
}

type frameHandler func(c *Client, s *Session, payload json.RawMessage)

func (h *Hub) handlers() map[MessageType]frameHandler {
	return map[MessageType]frameHandler{
		TypeRegister:   h.handleRegister,
		TypeLogin:      h.handleLogin,
		TypeTokenLogin: h.handleTokenLogin,
		TypeAdminLogin: h.handleAdminLogin,
		TypeMessage:    h.handleMessage,
		TypeTypingStart: func(c *Client, s *Session, _ json.RawMessage) {
			h.relayTyping(c, s, TypeTypingStart)
		},
		TypeTypingStop: func(c *Client, s *Session, _ json.RawMessage) {
			h.relayTyping(c, s, TypeTypingStop)
		},
		TypeJoinVoice:    h.handleJoinVoice,
		TypeLeaveVoice:   h.handleLeaveVoice,
		TypeVoiceSignal:  h.handleVoiceSignal,
		TypeClearHistory: h.handleClearHistory,
	}
}

// decodePayload unmarshals payload into dst and replies with a structured failure on error.
// A missing payload decodes as an empty object.
func decodePayload(c *Client, t MessageType, payload json.RawMessage, dst any) bool {
	if len(payload) == 0 || string(payload) == "null" {
		return true
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		c.logger.Warn().Err(err).Str("msg_type", string(t)).Msg("Client sent invalid payload")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return false
	}
	return true
}
