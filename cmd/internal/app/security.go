package app

import (
	"errors"

	"lyceum/cmd/security/token"
)

// ValidateSecurityConfig enforces the deployment security policy at startup.
// Fail-fast: silently falling back to weaker refresh-token hashing in
// production is unacceptable, so enforcement validates the same module
// that performs the hashing (security/token).
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: LYCEUM_REQUIRE_TOKEN_HMAC=true but LYCEUM_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: LYCEUM_REQUIRE_TOKEN_HMAC=true but LYCEUM_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	// Guards against future changes reintroducing a SHA fallback under policy.
	if !token.HMACEnabled() {
		return errors.New("security policy: LYCEUM_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
