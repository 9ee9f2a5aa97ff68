package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a session bearer token.
// The token binds a user identity to a signature and an expiry; it carries no permissions.
type Payload struct {
	jwt.StandardClaims

	// ID is the user's stable identifier in the user store.
	ID string `json:"id"`

	// Username is the display name at the time the token was issued.
	Username string `json:"username"`

	// Email is the login identity, cross-checked against the user store on token login.
	Email string `json:"email"`
}
