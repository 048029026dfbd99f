package hub

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxKeyLength is the key length limit used when none is configured.
const DefaultMaxKeyLength = 256

// ValidateKey checks that key is usable as a variable name.
// Keys must be non-empty valid UTF-8 of at most maxLen bytes, without control
// characters or '/', and not "." or "..". A maxLen <= 0 selects
// DefaultMaxKeyLength.
func ValidateKey(key string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxKeyLength
	}

	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}

	if key == "." || key == ".." {
		return fmt.Errorf("%w: key %q is a path segment", ErrInvalidKey, key)
	}

	if len(key) > maxLen {
		return fmt.Errorf("%w: key is %d bytes (max %d)", ErrInvalidKey, len(key), maxLen)
	}

	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidKey)
	}

	if strings.ContainsRune(key, '/') {
		return fmt.Errorf("%w: key %q contains '/'", ErrInvalidKey, key)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key %q contains a control character", ErrInvalidKey, key)
		}
	}

	return nil
}
