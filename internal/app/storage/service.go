package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidKey is returned for keys that are empty, absolute or escape the store root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// ServiceConfig holds the configuration required to build a storage service.
// S3 is used when S3BucketName is set, the local directory LocalDir otherwise.
type ServiceConfig struct {
	LocalDir string

	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Object is an opened stored file. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// StorageService is the blob store behind uploaded avatars and chat attachments.
type StorageService interface {
	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns the object stored under key, or ErrNotFound.
	Open(ctx context.Context, key string) (*Object, error)

	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// NewStorageService is the factory function for StorageService.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	if cfg.S3BucketName != "" {
		return newS3Client(ctx, cfg)
	}
	return newLocalStore(cfg.LocalDir)
}

// CleanKey validates an object key and returns its canonical slash-separated form.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// ContentTypeFor guesses the MIME type of key from its extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
