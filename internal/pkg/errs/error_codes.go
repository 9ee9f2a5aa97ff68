/*
Package errs provides the application error type and its error code constants.

The same codes are used in HTTP JSON responses and in WebSocket `error` events,
so clients can branch on a stable number instead of parsing messages.
*/
package errs

// 1xxx: Request and protocol errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that a frame or body was not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrNotFound indicates that the requested resource does not exist.
	ErrNotFound = 1004

	// ErrRequestEntityTooLarge indicates that an upload exceeded the size limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat content errors
const (
	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageEmpty indicates a chat message with neither text nor attachment.
	ErrMessageEmpty = 2202

	// ErrFileSizeTooLarge indicates that an uploaded file is over the allowed size.
	ErrFileSizeTooLarge = 2301

	// ErrInvalidFileType indicates that an uploaded file has a disallowed type.
	ErrInvalidFileType = 2302
)

// 3xxx: Authentication and session errors
const (
	// ErrNotAuthenticated indicates a privileged action on a connection without a session.
	ErrNotAuthenticated = 3001

	// ErrInvalidCredentials indicates a wrong email/password pair.
	ErrInvalidCredentials = 3002

	// ErrEmailNotVerified indicates a login attempt on an account that is not verified yet.
	ErrEmailNotVerified = 3003

	// ErrInvalidToken indicates an expired, forged or mismatched bearer token.
	ErrInvalidToken = 3004

	// ErrUserAlreadyExists indicates the username is taken.
	ErrUserAlreadyExists = 3005

	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = 3006

	// ErrInvalidUsername indicates a username that does not match the allowed pattern.
	ErrInvalidUsername = 3007

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = 3008

	// ErrInvalidPassword indicates a password outside the allowed length.
	ErrInvalidPassword = 3009

	// ErrVerificationTokenInvalid indicates an unknown or already used verification link.
	ErrVerificationTokenInvalid = 3010

	// ErrAvatarForbidden indicates an avatar upload for an account other than the session's.
	ErrAvatarForbidden = 3011
)

// 5xxx: Internal system errors
const (
	// ErrUnknown represents an unclassified server error. Details stay in the server log.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates the blob store rejected a write.
	ErrFileStorageFailed = 5001
)
