package handler

import (
	"errors"
	"net/http"
	"strings"

	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

// VerifyResult is returned once an account has been verified.
type VerifyResult struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// HandleVerifyEmail consumes the token from a verification link.
func HandleVerifyEmail(users user.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		verified, err := users.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, user.ErrInvalidVerificationToken) {
				resp.RespondError(w, r, errs.NewError(errs.ErrVerificationTokenInvalid))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("Email verified", "user_id", verified.ID)

		resp.RespondSuccess(w, r, VerifyResult{
			Username: verified.Username,
			Message:  "Email verified. You can now log in.",
		})
	}
}
