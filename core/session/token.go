package session

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	// tokenBytes is the token entropy: 32 bytes = 256 bits, far beyond what
	// is guessable within any session TTL.
	tokenBytes = 32

	// tokenLength is the encoded length of a generated token.
	tokenLength = 43 // base64url of 32 bytes, no padding

	// maxTokenLength bounds tokens accepted from the outside. Anything longer
	// is not ours and is rejected before touching storage.
	maxTokenLength = 128
)

// generateToken creates a cryptographically secure random token encoded as
// base64 URL-safe string without padding.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// validToken screens caller-supplied tokens: non-empty, bounded length and
// base64url alphabet only. Cookies carry arbitrary client data, so malformed
// values are expected and must never reach a storage query.
func validToken(token string) bool {
	if token == "" || len(token) > maxTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
