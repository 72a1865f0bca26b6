package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, LYCEUM_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	// CORS policy for the JSON API. Entries may carry a single '*'
	// wildcard, e.g. "http://127.0.0.1:*".
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If false, /metrics is not registered.
	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("LYCEUM_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("LYCEUM_LOG_LEVEL", "info"),
		LogFormat: EnvString("LYCEUM_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("LYCEUM_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LYCEUM_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LYCEUM_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LYCEUM_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("LYCEUM_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("LYCEUM_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("LYCEUM_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("LYCEUM_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("LYCEUM_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("LYCEUM_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvStringSlice("LYCEUM_CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),
		CORSAllowCredentials: EnvBool("LYCEUM_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("LYCEUM_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("LYCEUM_METRICS_ENABLED", true),
	}
}
