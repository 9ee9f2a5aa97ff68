package chat

import (
	"path/filepath"
	"strings"

	"relaychat/internal/app/storage"
	"relaychat/internal/pkg/errs"
)

const (
	// MaxUploadSizeMB is the maximum allowed upload body in megabytes.
	MaxUploadSizeMB = 10

	// MaxUploadSize is the maximum allowed upload body in bytes.
	MaxUploadSize = MaxUploadSizeMB * 1024 * 1024

	// MaxContentBytes is the maximum length of a text message or file caption.
	MaxContentBytes = 5000

	// maxOriginalNameLength bounds the client file name echoed back in messages.
	maxOriginalNameLength = 255
)

// ImageExtToMIME maps the avatar extensions that are accepted to their MIME types.
var ImageExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateUploadSize checks that an upload body is present and within the size limit.
func ValidateUploadSize(size int) *errs.CustomError {
	if size <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if size > MaxUploadSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxUploadSizeMB)
	}

	return nil
}

// ValidateImageName checks that fileName has an image extension and returns its MIME type.
func ValidateImageName(fileName string) (string, *errs.CustomError) {
	ext := strings.ToLower(filepath.Ext(fileName))

	mimeType, ok := ImageExtToMIME[ext]
	if !ok {
		return "", errs.NewError(errs.ErrInvalidFileType)
	}

	return mimeType, nil
}

// SanitizeFileName strips directories and control characters from a client file name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + strings.TrimSpace(name))

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)

	if name == "/" || name == "." || name == ".." || name == "" {
		return "file"
	}
	if len(name) > maxOriginalNameLength {
		name = strings.ToValidUTF8(name[len(name)-maxOriginalNameLength:], "")
	}
	return name
}

// attachmentMIME prefers the declared type and falls back to the extension.
func attachmentMIME(declared, key string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.ContainsAny(declared, "\r\n") {
		return declared
	}
	return storage.ContentTypeFor(key)
}
