package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// HMACEnvKey is the env var holding the token HMAC secret.
// #nosec G101 -- the name of an environment variable, not a credential.
const HMACEnvKey = "LYCEUM_TOKEN_HMAC_KEY"

// HashSHA256Hex returns the SHA-256 digest of s as lowercase hex.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns the HMAC-SHA256 digest of s under key as lowercase hex.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key (trimmed), enforcing a
// minimum length in bytes. Missing/blank -> ErrHMACKeyMissing; shorter than
// minBytes -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	key := []byte(raw)
	if minBytes > 0 && len(key) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return key, nil
}

// HMACEnabled reports whether a non-blank HMAC key is present in the
// environment. It does not enforce key length; use HMACKeyFromEnv for
// policy checks.
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// HashRefreshTokenHex hashes a refresh token for server-side storage.
// HMAC-SHA256 when the env key is set, SHA-256 otherwise.
func HashRefreshTokenHex(tok string) string {
	key := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if key == "" {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, []byte(key))
}

// HashRefreshTokenHexRequireHMAC hashes a refresh token in enforced-HMAC
// mode, failing when the key is missing or shorter than minBytes.
func HashRefreshTokenHexRequireHMAC(tok string, minBytes int) (string, error) {
	key, err := HMACKeyFromEnv(minBytes)
	if err != nil {
		return "", err
	}
	return HashHMACSHA256Hex(tok, key), nil
}
