package chat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"relaychat/internal/app/history"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/errs"
)

const (
	minPasswordLength = 6

	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// handleRegister creates an unverified account and mails its verification link.
func (h *Hub) handleRegister(c *Client, _ *Session, payload json.RawMessage) {
	var req RegisterPayload
	if !decodePayload(c, TypeRegister, payload, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)
	email := user.NormalizeEmail(req.Email)

	if err := validateRegistration(username, email, req.Password); err != nil {
		c.sendEvent(TypeRegisterResponse, RegisterResponse{Message: err.Message})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to hash password")
		c.sendEvent(TypeRegisterResponse, RegisterResponse{Message: errs.NewError(errs.ErrUnknown).Message})
		return
	}

	ctx, cancel := h.storeContext()
	defer cancel()

	u, err := h.users.Register(ctx, username, email, string(hash))
	if err != nil {
		c.sendEvent(TypeRegisterResponse, RegisterResponse{Message: h.authFailure(c, err).Message})
		return
	}

	c.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("User registered.")

	token := u.VerificationToken
	h.goBackground("verification_mail", func(ctx context.Context) error {
		return h.mailer.SendVerification(ctx, u.Email, u.Username, token)
	})

	c.sendEvent(TypeRegisterResponse, RegisterResponse{
		Success: true,
		Message: "Registration successful! Please check your email to verify your account.",
	})
}

func validateRegistration(username, email, password string) *errs.CustomError {
	if !usernamePattern.MatchString(username) {
		return errs.NewError(errs.ErrInvalidUsername)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return errs.NewError(errs.ErrInvalidEmail)
	}

	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return errs.NewError(errs.ErrInvalidPassword)
	}
	return nil
}

// handleLogin authenticates with email and password and installs a session.
func (h *Hub) handleLogin(c *Client, _ *Session, payload json.RawMessage) {
	var req LoginPayload
	if !decodePayload(c, TypeLogin, payload, &req) {
		return
	}

	ctx, cancel := h.storeContext()
	defer cancel()

	u, err := h.users.Authenticate(ctx, user.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		c.sendEvent(TypeLoginResponse, LoginResponse{Message: h.authFailure(c, err).Message})
		return
	}

	token, err := jwt.GenerateToken(&jwt.Payload{ID: u.ID, Username: u.Username, Email: u.Email}, h.opts.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to sign session token")
		c.sendEvent(TypeLoginResponse, LoginResponse{Message: errs.NewError(errs.ErrUnknown).Message})
		return
	}

	h.completeLogin(c, u, token, TypeLoginResponse)
}

// handleTokenLogin re-authenticates with a previously issued bearer token.
func (h *Hub) handleTokenLogin(c *Client, _ *Session, payload json.RawMessage) {
	var req TokenLoginPayload
	if !decodePayload(c, TypeTokenLogin, payload, &req) {
		return
	}

	invalid := func() {
		c.sendEvent(TypeTokenLoginResponse, LoginResponse{Message: errs.NewError(errs.ErrInvalidToken).Message})
	}

	claims, err := jwt.ParseToken(req.Token, h.opts.JWTSecret)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Token login rejected")
		invalid()
		return
	}

	email := user.NormalizeEmail(req.Email)
	if email == "" || claims.Email != email {
		invalid()
		return
	}

	ctx, cancel := h.storeContext()
	defer cancel()

	u, err := h.users.ByEmail(ctx, email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		invalid()
		return
	case err != nil:
		c.sendEvent(TypeTokenLoginResponse, LoginResponse{Message: h.authFailure(c, err).Message})
		return
	case u.ID != claims.ID:
		invalid()
		return
	case !u.IsVerified:
		c.sendEvent(TypeTokenLoginResponse, LoginResponse{Message: errs.NewError(errs.ErrEmailNotVerified).Message})
		return
	}

	h.completeLogin(c, u, req.Token, TypeTokenLoginResponse)
}

// completeLogin installs the session, replies, replays history and then broadcasts presence.
// The reply and the replay are queued while the history is locked, so no chat message can be
// delivered to c between them.
func (h *Hub) completeLogin(c *Client, u *user.User, token string, responseType MessageType) {
	if !h.installSession(c, newSession(u)) {
		return
	}

	h.history.Replay(func(messages []history.Message) {
		c.sendEvent(responseType, LoginResponse{Success: true, Token: token, User: u})
		for i := range messages {
			c.sendEvent(TypeMessage, messages[i])
		}
	})

	c.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Str("via", string(responseType)).Msg("User logged in.")

	h.broadcastPresence()
}

// handleAdminLogin adds c to the admin set when the passphrase matches.
func (h *Hub) handleAdminLogin(c *Client, _ *Session, payload json.RawMessage) {
	var req AdminLoginPayload
	if !decodePayload(c, TypeAdminLogin, payload, &req) {
		return
	}

	if h.opts.AdminPassphrase == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.opts.AdminPassphrase)) != 1 {
		c.logger.Warn().Msg("Admin login rejected")
		c.sendEvent(TypeAdminStatus, AdminStatusPayload{IsAdmin: false, Message: "Invalid admin password"})
		return
	}

	h.mu.Lock()
	_, registered := h.clients[c]
	if registered {
		h.admins[c] = struct{}{}
	}
	h.mu.Unlock()

	if !registered {
		return
	}

	c.logger.Info().Msg("Admin access granted")
	c.sendEvent(TypeAdminStatus, AdminStatusPayload{IsAdmin: true})
}

// authFailure maps user store errors to client-facing errors. Unexpected errors are logged
// and reported generically.
func (h *Hub) authFailure(c *Client, err error) *errs.CustomError {
	switch {
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrNotFound):
		return errs.NewError(errs.ErrInvalidCredentials)
	case errors.Is(err, user.ErrNotVerified):
		return errs.NewError(errs.ErrEmailNotVerified)
	case errors.Is(err, user.ErrEmailTaken):
		return errs.NewError(errs.ErrEmailAlreadyExists)
	case errors.Is(err, user.ErrUsernameTaken):
		return errs.NewError(errs.ErrUserAlreadyExists)
	}

	c.logger.Error().Err(err).Msg("User store failure")
	return errs.NewError(errs.ErrUnknown)
}
