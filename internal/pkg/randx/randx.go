/*
Package randx generates identifiers: connection ids, user ids, verification tokens,
and collision-resistant storage names for uploaded files.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the alphabet used for short random strings.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the size of the Base62 alphabet.
	Base62Len = int64(len(Base62Chars))

	// VerificationTokenLength is the length of an email verification token.
	VerificationTokenLength = 32

	// maxExtLength bounds the extension kept from a client-supplied file name.
	maxExtLength = 10
)

// Base62 returns a cryptographically random Base62 string of length n.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random Base62 character: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// VerificationToken returns a random token for email verification links.
func VerificationToken() (string, error) {
	return Base62(VerificationTokenLength)
}

// ID returns a UUID v4 string.
func ID() string {
	return uuid.New().String()
}

// ConnectionID returns a short id used to tag a connection in logs.
func ConnectionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// StorageKey returns "<prefix>/<uuid><ext>" where ext is the lower-cased extension
// of originalName. The client-supplied name never reaches the key otherwise.
func StorageKey(prefix string, originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > maxExtLength || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}

	name := uuid.New().String() + ext
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
