package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"relaychat/internal/pkg/logx"
)

// localStore keeps uploads as plain files below a root directory.
type localStore struct {
	rootDir string
}

func newLocalStore(rootDir string) (*localStore, error) {
	rootDir = strings.TrimSpace(rootDir)
	if rootDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	logx.Info("Local upload storage initialized", "dir", rootDir)
	return &localStore{rootDir: rootDir}, nil
}

func (s *localStore) pathFor(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(key)), nil
}

// Put writes data to a temporary file and renames it into place so readers never see partial files.
func (s *localStore) Put(_ context.Context, key string, data []byte, _ string) error {
	finalPath, err := s.pathFor(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload subdirectory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp upload file: %w", err)
	}
	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("write upload bytes: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("move upload into place: %w", err)
	}

	return nil
}

func (s *localStore) Open(_ context.Context, key string) (*Object, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open upload file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat upload file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return &Object{Body: f, ContentType: ContentTypeFor(key), Size: info.Size()}, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}
