package errs

import "net/http"

// errorMap holds the client-facing message and HTTP status for every code.
var errorMap = map[int]CustomError{
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrNotFound:              {Code: ErrNotFound, Message: "Resource not found.", Status: http.StatusNotFound},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Message: "File is too large (max %d MB)."},
	ErrInvalidFileType:       {Code: ErrInvalidFileType, Message: "File type is not allowed."},

	ErrNotAuthenticated:         {Code: ErrNotAuthenticated, Message: "Not authenticated", Status: http.StatusUnauthorized},
	ErrInvalidCredentials:       {Code: ErrInvalidCredentials, Message: "Invalid email or password", Status: http.StatusUnauthorized},
	ErrEmailNotVerified:         {Code: ErrEmailNotVerified, Message: "Please verify your email before logging in. Check your inbox for the verification link.", Status: http.StatusForbidden},
	ErrInvalidToken:             {Code: ErrInvalidToken, Message: "Session expired. Please log in again.", Status: http.StatusUnauthorized},
	ErrUserAlreadyExists:        {Code: ErrUserAlreadyExists, Message: "Username already taken", Status: http.StatusConflict},
	ErrEmailAlreadyExists:       {Code: ErrEmailAlreadyExists, Message: "Email already registered", Status: http.StatusConflict},
	ErrInvalidUsername:          {Code: ErrInvalidUsername, Message: "Username must be 3-20 letters, digits or underscores.", Status: http.StatusBadRequest},
	ErrInvalidEmail:             {Code: ErrInvalidEmail, Message: "Invalid email address.", Status: http.StatusBadRequest},
	ErrInvalidPassword:          {Code: ErrInvalidPassword, Message: "Password must be 6-72 characters.", Status: http.StatusBadRequest},
	ErrVerificationTokenInvalid: {Code: ErrVerificationTokenInvalid, Message: "Verification link is invalid or has already been used.", Status: http.StatusBadRequest},
	ErrAvatarForbidden:          {Code: ErrAvatarForbidden, Message: "You can only change your own avatar.", Status: http.StatusForbidden},

	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
