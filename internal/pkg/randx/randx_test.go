package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase62(t *testing.T) {
	s, err := Base62(20)
	require.NoError(t, err)
	assert.Len(t, s, 20)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(Base62Chars, r), "unexpected rune %q", r)
	}
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		original   string
		wantPrefix string
		wantSuffix string
	}{
		{name: "keeps lower-cased extension", prefix: "files", original: "Report.PDF", wantPrefix: "files/", wantSuffix: ".pdf"},
		{name: "strips directories", prefix: "avatars", original: "../../etc/passwd.png", wantPrefix: "avatars/", wantSuffix: ".png"},
		{name: "no extension", prefix: "files", original: "README", wantPrefix: "files/"},
		{name: "no prefix", original: "a.gif", wantSuffix: ".gif"},
		{name: "overlong extension dropped", prefix: "files", original: "x.abcdefghijklmnop", wantPrefix: "files/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := StorageKey(tt.prefix, tt.original)
			assert.True(t, strings.HasPrefix(key, tt.wantPrefix), key)
			assert.True(t, strings.HasSuffix(key, tt.wantSuffix), key)
			assert.NotContains(t, key, "..")
			assert.Equal(t, strings.Count(tt.wantPrefix, "/"), strings.Count(key, "/"))
		})
	}

	assert.NotEqual(t, StorageKey("f", "a.txt"), StorageKey("f", "a.txt"))
}
