package chat

import (
	"encoding/json"

	"relaychat/internal/app/user"
)

// MessageType is the `type` discriminant of every frame.
type MessageType string

// Client to server.
const (
	TypeRegister     MessageType = "register"
	TypeLogin        MessageType = "login"
	TypeTokenLogin   MessageType = "token_login"
	TypeAdminLogin   MessageType = "admin_login"
	TypeMessage      MessageType = "message"
	TypeTypingStart  MessageType = "typing_start"
	TypeTypingStop   MessageType = "typing_stop"
	TypeJoinVoice    MessageType = "join_voice"
	TypeLeaveVoice   MessageType = "leave_voice"
	TypeVoiceSignal  MessageType = "voice_signal"
	TypeClearHistory MessageType = "clear_history"

	// Binary frame metadata types.
	TypeAvatarUpload MessageType = "avatar_upload"
	TypeFileMessage  MessageType = "file_message"
)

// Server to client. message, typing_start, typing_stop and voice_signal are reused as well.
const (
	TypeRegisterResponse     MessageType = "register_response"
	TypeLoginResponse        MessageType = "login_response"
	TypeTokenLoginResponse   MessageType = "token_login_response"
	TypeAdminStatus          MessageType = "admin_status"
	TypeUsers                MessageType = "users"
	TypeVoiceUsers           MessageType = "voice_users"
	TypeClearMessages        MessageType = "clear_messages"
	TypeError                MessageType = "error"
	TypeAvatarUploadResponse MessageType = "avatar_upload_response"
)

// Envelope is the JSON frame shape in both directions.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// inboundEnvelope defers payload decoding to the selected handler.
type inboundEnvelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// --- Inbound payloads ---

type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenLoginPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type AdminLoginPayload struct {
	Password string `json:"password"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

// VoiceSignalPayload carries opaque peer-connection negotiation data.
type VoiceSignalPayload struct {
	Signal json.RawMessage `json:"signal"`
}

// --- Outbound payloads ---

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResponse answers both login and token_login.
type LoginResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token,omitempty"`
	User    *user.User `json:"user,omitempty"`
	Message string     `json:"message,omitempty"`
}

type AdminStatusPayload struct {
	IsAdmin bool   `json:"isAdmin"`
	Message string `json:"message,omitempty"`
}

// PresenceEntry is one authenticated connection in a `users` event.
type PresenceEntry struct {
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

// VoiceMember is one connection in a `voice_users` event.
type VoiceMember struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type TypingPayload struct {
	Username string `json:"username"`
}

// RelayedSignal is a voice_signal as delivered to the other voice members.
type RelayedSignal struct {
	From         string          `json:"from"`
	FromUsername string          `json:"fromUsername"`
	Signal       json.RawMessage `json:"signal"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type AvatarUploadResponse struct {
	Success bool   `json:"success"`
	Avatar  string `json:"avatar,omitempty"`
	Message string `json:"message,omitempty"`
}
