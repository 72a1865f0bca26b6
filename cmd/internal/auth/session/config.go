package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It is explicit and environment-driven so deployments can tune security
// parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of PASETO access tokens.
	AccessTokenTTL time.Duration

	// Refresh token TTL policies per client platform.
	// Browser sessions get the web TTL; mobile apps get the long TTL only
	// when the user opted into "remember me".
	RefreshTTLWeb         time.Duration
	RefreshTTLMobile      time.Duration
	RefreshTTLMobileShort time.Duration

	// ClockSkew is the allowed time skew during token validation.
	ClockSkew time.Duration

	// RefreshTokenBytes is the number of random bytes behind opaque
	// refresh tokens.
	RefreshTokenBytes int

	// RotateMinInterval throttles refresh rotation per session. A rotation
	// attempted sooner than this after the previous use fails with
	// RefreshRateLimitError.
	RotateMinInterval time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key used to
	// sign PASETO v4.public access tokens.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns a secure default configuration suitable for development.
func DefaultConfig() Config {
	return Config{
		Issuer:                "lyceum",
		AccessTokenTTL:        15 * time.Minute,
		RefreshTTLWeb:         7 * 24 * time.Hour,
		RefreshTTLMobile:      60 * 24 * time.Hour,
		RefreshTTLMobileShort: 14 * 24 * time.Hour,
		ClockSkew:             30 * time.Second,
		RefreshTokenBytes:     32,
		RotateMinInterval:     10 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - LYCEUM_PASETO_V4_SECRET_KEY_HEX
//
// Optional (durations must be valid Go duration strings):
//   - LYCEUM_AUTH_ISSUER
//   - LYCEUM_AUTH_ACCESS_TTL
//   - LYCEUM_AUTH_REFRESH_TTL_WEB
//   - LYCEUM_AUTH_REFRESH_TTL_MOBILE
//   - LYCEUM_AUTH_REFRESH_TTL_MOBILE_SHORT
//   - LYCEUM_AUTH_CLOCK_SKEW
//   - LYCEUM_AUTH_REFRESH_TOKEN_BYTES
//   - LYCEUM_AUTH_REFRESH_MIN_INTERVAL
//
// Returns ErrConfig when configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("LYCEUM_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.AccessTokenTTL, err = envTTL("LYCEUM_AUTH_ACCESS_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTLWeb, err = envTTL("LYCEUM_AUTH_REFRESH_TTL_WEB", cfg.RefreshTTLWeb); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTLMobile, err = envTTL("LYCEUM_AUTH_REFRESH_TTL_MOBILE", cfg.RefreshTTLMobile); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTLMobileShort, err = envTTL("LYCEUM_AUTH_REFRESH_TTL_MOBILE_SHORT", cfg.RefreshTTLMobileShort); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("LYCEUM_AUTH_CLOCK_SKEW"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("LYCEUM_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := os.Getenv("LYCEUM_AUTH_REFRESH_MIN_INTERVAL"); v != "" {
		d, perr := time.ParseDuration(v)
		if perr != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.RotateMinInterval = d
	}

	cfg.PasetoV4SecretKeyHex = os.Getenv("LYCEUM_PASETO_V4_SECRET_KEY_HEX")
	if cfg.PasetoV4SecretKeyHex == "" {
		return Config{}, ErrConfig
	}

	// Invariant: mobile "short" must not exceed mobile "long".
	if cfg.RefreshTTLMobile < cfg.RefreshTTLMobileShort {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func envTTL(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, ErrConfig
	}
	return d, nil
}
