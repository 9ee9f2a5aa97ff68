package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	root := t.TempDir()
	svc, err := NewStorageService(context.Background(), ServiceConfig{LocalDir: root})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Put(ctx, "avatars/a.png", []byte("png-bytes"), "image/png"))

	onDisk, err := os.ReadFile(filepath.Join(root, "avatars", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(onDisk))

	obj, err := svc.Open(ctx, "avatars/a.png")
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())

	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.EqualValues(t, len("png-bytes"), obj.Size)

	require.NoError(t, svc.Delete(ctx, "avatars/a.png"))
	_, err = svc.Open(ctx, "avatars/a.png")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, svc.Delete(ctx, "avatars/a.png"), "deleting a missing object is not an error")
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	svc, err := NewStorageService(context.Background(), ServiceConfig{LocalDir: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../secret", "a/../../b", "a\\b", "."} {
		_, err := svc.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestLocalStoreOpenDirectoryIsNotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "files"), 0o755))

	svc, err := NewStorageService(context.Background(), ServiceConfig{LocalDir: root})
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), "files")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanKey(t *testing.T) {
	key, err := CleanKey(" files/./x.txt ")
	require.NoError(t, err)
	assert.Equal(t, "files/x.txt", key)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("avatars/a.png"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("files/blob"))
}
