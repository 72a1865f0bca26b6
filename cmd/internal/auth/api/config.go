package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// SignupEnabled gates POST /api/auth/signup. Lyceum runs open signup
	// by default; operators can close it without redeploying.
	SignupEnabled bool

	TrustProxy   bool
	MaxBodyBytes int64

	// IP-window throttle for login attempts.
	LoginIPMax    int
	LoginIPWindow time.Duration

	// Progressive lockout per login identifier (normalized username/email).
	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration

	// Web cookie transport.
	WebRefreshCookieEnabled bool
	RefreshCookieName       string
	CSRFCookieName          string
	CSRFHeaderName          string
	CookiePath              string
	CookieDomain            string
	CookieSecure            bool
	CookieSameSite          http.SameSite
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		SignupEnabled: envBool("LYCEUM_AUTH_SIGNUP_ENABLED", true),
		TrustProxy:    envBool("LYCEUM_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("LYCEUM_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB

		LoginIPMax:    envInt("LYCEUM_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("LYCEUM_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),

		LockoutShortThreshold:  envInt("LYCEUM_AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD", 5),
		LockoutShortDuration:   envDuration("LYCEUM_AUTH_LOGIN_LOCKOUT_SHORT_DURATION", 5*time.Minute),
		LockoutLongThreshold:   envInt("LYCEUM_AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD", 10),
		LockoutLongDuration:    envDuration("LYCEUM_AUTH_LOGIN_LOCKOUT_LONG_DURATION", 30*time.Minute),
		LockoutSevereThreshold: envInt("LYCEUM_AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD", 20),
		LockoutSevereDuration:  envDuration("LYCEUM_AUTH_LOGIN_LOCKOUT_SEVERE_DURATION", 2*time.Hour),

		WebRefreshCookieEnabled: envBool("LYCEUM_AUTH_WEB_REFRESH_COOKIE", true),
		RefreshCookieName:       envString("LYCEUM_AUTH_REFRESH_COOKIE_NAME", "lyceum_refresh_token"),
		CSRFCookieName:          envString("LYCEUM_AUTH_CSRF_COOKIE_NAME", "lyceum_csrf_token"),
		CSRFHeaderName:          envString("LYCEUM_AUTH_CSRF_HEADER_NAME", "X-CSRF-Token"),
		CookiePath:              envString("LYCEUM_AUTH_COOKIE_PATH", "/"),
		CookieDomain:            envString("LYCEUM_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:            envBool("LYCEUM_AUTH_COOKIE_SECURE", true),
		CookieSameSite:          parseSameSite(os.Getenv("LYCEUM_AUTH_COOKIE_SAMESITE")),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = 20
	}

	// Cookie guardrails: distinct names, and SameSite=None implies Secure.
	if cfg.CSRFCookieName == cfg.RefreshCookieName {
		cfg.CSRFCookieName = cfg.RefreshCookieName + "_csrf"
	}
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}

	return cfg
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
