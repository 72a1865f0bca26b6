package identity

import (
	"crypto/rand"
	"encoding/base64"

	"lyceum/cmd/security/token"
)

// NewOpaqueToken returns a cryptographically random URL-safe token.
// It is handed to the client exactly once; the server stores only a hash
// (see HashRefreshTokenHex).
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshTokenHex returns the server-stored hash for refresh tokens.
// HMAC-SHA256 when LYCEUM_TOKEN_HMAC_KEY is set; SHA-256 otherwise.
func HashRefreshTokenHex(tok string) string { return token.HashRefreshTokenHex(tok) }
