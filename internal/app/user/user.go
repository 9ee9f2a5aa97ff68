/*
Package user defines account records and the store the chat server authenticates against.

The chat core never touches credentials directly beyond hashing a new password; lookups,
password checks and verification state live behind the Store interface.
*/
package user

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates no account matches the lookup key.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotVerified indicates the account exists but its email is not verified yet.
	ErrNotVerified = errors.New("email not verified")

	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidVerificationToken indicates an unknown or consumed verification token.
	ErrInvalidVerificationToken = errors.New("invalid verification token")
)

// User is an account record as seen by the chat server.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`

	// Avatar is the storage key of the user's avatar, nil when none was uploaded.
	Avatar *string `json:"avatar"`

	// Notifications enables email notifications for activity while offline.
	Notifications bool `json:"notifications"`

	IsVerified bool `json:"-"`

	// VerificationToken is only populated on the record returned by Register.
	VerificationToken string `json:"-"`
}

// Store is the persistence collaborator for accounts.
type Store interface {
	// Register creates an unverified account and returns it with a fresh VerificationToken.
	Register(ctx context.Context, username, email, passwordHash string) (*User, error)

	// Verify marks the account owning token as verified and consumes the token.
	Verify(ctx context.Context, token string) (*User, error)

	// Authenticate checks email and password and requires a verified account.
	Authenticate(ctx context.Context, email, password string) (*User, error)

	// ByEmail returns the account for email or ErrNotFound.
	ByEmail(ctx context.Context, email string) (*User, error)

	// WithNotificationsEnabled lists verified accounts that opted into email notifications.
	WithNotificationsEnabled(ctx context.Context) ([]User, error)

	// UpdateAvatar stores the avatar key for the account with email.
	UpdateAvatar(ctx context.Context, email, avatar string) error
}

// NormalizeEmail lower-cases and trims an email address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
