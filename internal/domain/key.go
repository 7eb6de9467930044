package domain

import (
	"net/url"
	"strings"
)

const MaxKeyLength = 1024

// ValidateKey rejects empty, oversized, badly encoded, traversing or
// non-whitelisted object keys.
func ValidateKey(key string) error {
	_, err := NormalizeKey(key)
	return err
}

// NormalizeKey percent-decodes key once, validates the decoded form and returns it.
func NormalizeKey(key string) (string, error) {
	if key == "" {
		return "", &KeyError{Key: key, Reason: KeyEmpty}
	}
	if len(key) > MaxKeyLength {
		return "", &KeyError{Key: key, Reason: KeyTooLong}
	}

	decoded, err := url.PathUnescape(key)
	if err != nil {
		return "", &KeyError{Key: key, Reason: KeyBadEncoding}
	}

	if strings.Contains(decoded, "..") ||
		strings.HasPrefix(decoded, "/") ||
		strings.Contains(decoded, "//") ||
		strings.Contains(decoded, `\`) {
		return "", &KeyError{Key: key, Reason: KeyTraversal}
	}

	for i := 0; i < len(decoded); i++ {
		if !keyByteAllowed(decoded[i]) {
			return "", &KeyError{Key: key, Reason: KeyInvalidCharacter}
		}
	}

	return decoded, nil
}

func keyByteAllowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '/' || c == '-':
		return true
	default:
		return false
	}
}
