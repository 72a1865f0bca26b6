package identity

import (
	"errors"

	"lyceum/cmd/security/password"
)

// Password hashing delegates to cmd/security/password so that hashing cost
// and policy have a single source of truth (env + defaults). identity keeps
// a historical baseline of min length 8 and honors stricter env policy.

// HashPassword returns a PHC-style Argon2id hash of the plaintext.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Invalid env is an operational error, not a weak fallback.
		return "", err
	}
	applyBaselinePolicy(&cfg)

	enc, err := cfg.Hash(plain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort):
			return "", errors.New("password too short")
		case errors.Is(err, password.ErrPasswordTooLong):
			return "", errors.New("password too long")
		case errors.Is(err, password.ErrWeakPassword):
			return "", errors.New("weak password")
		default:
			return "", err
		}
	}
	return enc, nil
}

// VerifyPassword checks a plaintext against a PHC Argon2id hash.
// Decoding is strict and parameter-bounded (anti-DoS, see security/password).
func VerifyPassword(plain string, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	applyBaselinePolicy(&cfg)

	ok, err := cfg.Verify(encodedPHC, plain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return false, errors.New("invalid argon2id hash format")
		}
		return false, err
	}
	return ok, nil
}

// applyBaselinePolicy enforces identity's historical floor (min 8, max 256)
// while letting env tighten either bound.
func applyBaselinePolicy(cfg *password.Config) {
	if cfg.Policy.MinLength < 8 {
		cfg.Policy.MinLength = 8
	}
	if cfg.Policy.MaxLength <= 0 {
		cfg.Policy.MaxLength = 256
	}
}
