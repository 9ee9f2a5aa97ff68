package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relaychat/internal/app/storage"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

// HandleDownload streams an uploaded avatar or attachment from the blob store.
// The object key is the path below /uploads/.
func HandleDownload(storageService storage.StorageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := storage.CleanKey(chi.URLParam(r, "*"))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
			return
		}

		obj, err := storageService.Open(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		defer obj.Body.Close()

		contentType := obj.ContentType
		if contentType == "" {
			contentType = storage.ContentTypeFor(key)
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if obj.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, obj.Body); err != nil {
			logx.Debug("Upload download interrupted", "key", key, "error", err.Error())
		}
	}
}
