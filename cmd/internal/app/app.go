// Package app wires the Lyceum server runtime: config, logging, metrics,
// HTTP routes, the auth API, the server-rendered pages, and the session
// notifier websocket.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	authapi "lyceum/cmd/internal/auth/api"
	"lyceum/cmd/internal/auth/session"
	"lyceum/cmd/internal/gate"
	"lyceum/cmd/internal/web"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Lyceum server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *Metrics

	notifier *gate.Notifier
	ws       *gate.WSNotifier

	auth  *authapi.Handler
	pages *web.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var dbPool *pgxpool.Pool
	dbEnabled := cfg.DatabaseURL != ""
	if dbEnabled {
		pool, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		dbPool = pool
		log.Info("db.enabled.postgres")
	} else {
		log.Info("db.disabled.memory_stores")
	}

	// Session lifecycle events flow into the notifier so websocket
	// subscribers see logins, rotations, and revocations as they happen.
	notifier := gate.NewNotifier()

	var sessCfg session.Config
	if dbEnabled {
		loaded, err := session.LoadConfigFromEnv()
		if err != nil {
			if dbPool != nil {
				dbPool.Close()
			}
			return nil, err
		}
		sessCfg = loaded
	} else {
		// Dev mode signs tokens with an ephemeral key.
		sessCfg = session.DevConfig()
	}

	authCfg := authapi.LoadConfigFromEnv()
	authHandler, err := authapi.NewHandler(log, dbPool, authCfg, sessCfg, dbEnabled,
		authapi.WithSessionEvents(gate.AuthEvents{N: notifier}),
	)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	pages := web.NewHandler(log, authHandler.SessionService(), authHandler.IdentityStore(), authCfg.RefreshCookieName)
	ws := gate.NewWSNotifier(log, authHandler.SessionService(), notifier)

	var metrics *Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   metrics,
		notifier:  notifier,
		ws:        ws,
		auth:      authHandler,
		pages:     pages,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.auth, a.pages, a.ws)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithMetrics(handler, a.metrics)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", base,
		"ws_url", wsBaseURL(base)+"/ws/session",
		"db_enabled", a.dbEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a bind address into a dialable http base URL,
// substituting loopback for wildcard binds.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps an http(s) base URL to its ws(s) counterpart.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
