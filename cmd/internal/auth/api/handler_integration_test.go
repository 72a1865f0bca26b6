package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"lyceum/cmd/internal/auth/session"
)

// End-to-end flow against a real Postgres: signup, login, me, refresh
// rotation, logout. Gated on LYCEUM_DATABASE_URL.

func TestAuthFlow_SignupLoginRefreshLogout(t *testing.T) {
	pool, h := mustAuthFixture(t)
	defer pool.Close()

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	username := "it_" + strings.ToLower(ulid.Make().String())
	password := "correct-horse-battery-staple"

	// Signup on mobile so tokens travel in the JSON body.
	var signup signupResponse
	doJSON(t, srv, "/api/auth/signup", map[string]any{
		"username": username,
		"password": password,
		"platform": "mobile",
	}, http.StatusCreated, &signup)
	if signup.User.Username == nil || *signup.User.Username != username {
		t.Fatalf("unexpected signup user: %+v", signup.User)
	}
	if signup.User.Role != "student" {
		t.Fatalf("expected default student role, got %q", signup.User.Role)
	}
	if signup.Session.RefreshToken == "" || signup.Session.AccessToken == "" {
		t.Fatalf("expected tokens in mobile signup response")
	}

	// Login again.
	var login loginResponse
	doJSON(t, srv, "/api/auth/login", map[string]any{
		"username": username,
		"password": password,
		"platform": "mobile",
	}, http.StatusOK, &login)
	if login.Session.AccessToken == "" {
		t.Fatalf("expected access token from login")
	}

	// Wrong password must not leak which part failed.
	doJSON(t, srv, "/api/auth/login", map[string]any{
		"username": username,
		"password": "definitely-wrong-password",
	}, http.StatusUnauthorized, nil)

	// Me with bearer token.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Session.AccessToken)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", res.StatusCode)
	}
	var me meResponse
	if err := json.NewDecoder(res.Body).Decode(&me); err != nil {
		t.Fatalf("me decode: %v", err)
	}
	if me.User.ID != login.User.ID {
		t.Fatalf("me returned wrong user")
	}

	// Refresh rotation (wait out the per-session throttle).
	waitOutRotateThrottle(t, h)
	var refreshed refreshResponse
	doJSON(t, srv, "/api/auth/refresh", map[string]any{
		"refresh_token": login.Session.RefreshToken,
		"platform":      "mobile",
	}, http.StatusOK, &refreshed)
	if refreshed.Session.SessionID == login.Session.SessionID {
		t.Fatalf("refresh must rotate the session id")
	}

	// Replaying the rotated token is reuse and must be rejected.
	doJSON(t, srv, "/api/auth/refresh", map[string]any{
		"refresh_token": login.Session.RefreshToken,
		"platform":      "mobile",
	}, http.StatusUnauthorized, nil)

	// After reuse detection all of the user's sessions are revoked.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+refreshed.Session.AccessToken)
	res2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	_ = res2.Body.Close()
	if res2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("logout after reuse: expected 401, got %d", res2.StatusCode)
	}
}

func TestAuthFlow_WebCookieTransport(t *testing.T) {
	pool, h := mustAuthFixture(t)
	defer pool.Close()

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	username := "it_" + strings.ToLower(ulid.Make().String())

	body, _ := json.Marshal(map[string]any{
		"username": username,
		"password": "correct-horse-battery-staple",
		"platform": "web",
	})
	res, err := srv.Client().Post(srv.URL+"/api/auth/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", res.StatusCode)
	}

	var signup signupResponse
	if err := json.NewDecoder(res.Body).Decode(&signup); err != nil {
		t.Fatalf("signup decode: %v", err)
	}
	if signup.Session.RefreshToken != "" {
		t.Fatalf("web signup must not return the refresh token in the body")
	}

	var refreshCookie, csrfCookie *http.Cookie
	for _, c := range res.Cookies() {
		switch c.Name {
		case h.cfg.RefreshCookieName:
			refreshCookie = c
		case h.cfg.CSRFCookieName:
			csrfCookie = c
		}
	}
	if refreshCookie == nil || refreshCookie.Value == "" {
		t.Fatalf("expected refresh cookie on web signup")
	}
	if csrfCookie == nil || csrfCookie.Value == "" {
		t.Fatalf("expected csrf cookie on web signup")
	}

	// Cookie-based refresh without the CSRF header must fail.
	waitOutRotateThrottle(t, h)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/refresh", nil)
	req.AddCookie(refreshCookie)
	req.AddCookie(csrfCookie)
	res2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_ = res2.Body.Close()
	if res2.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf header, got %d", res2.StatusCode)
	}

	// With the double-submit header it succeeds.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/auth/refresh", nil)
	req.AddCookie(refreshCookie)
	req.AddCookie(csrfCookie)
	req.Header.Set(h.cfg.CSRFHeaderName, csrfCookie.Value)
	res3, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer func() { _ = res3.Body.Close() }()
	if res3.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with csrf header, got %d", res3.StatusCode)
	}
}

// ---- fixture ----

func doJSON(t *testing.T, srv *httptest.Server, path string, payload map[string]any, wantStatus int, out any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != wantStatus {
		t.Fatalf("POST %s: expected %d, got %d", path, wantStatus, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("POST %s decode: %v", path, err)
		}
	}
}

// waitOutRotateThrottle sleeps past RotateMinInterval when it is short
// enough to wait for, and skips the test otherwise.
func waitOutRotateThrottle(t *testing.T, h *Handler) {
	t.Helper()
	iv := h.sessCfg.RotateMinInterval
	if iv <= 0 {
		return
	}
	if iv > 15*time.Second {
		t.Skipf("rotate throttle too long for integration test: %v", iv)
	}
	time.Sleep(iv + time.Second)
}

func mustAuthFixture(t *testing.T) (*pgxpool.Pool, *Handler) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("LYCEUM_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: LYCEUM_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		var netErr net.Error
		if errors.As(err, &netErr) || strings.Contains(err.Error(), "connection refused") {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	mustApplyAuthSchema(t, pool)

	secret := paseto.NewV4AsymmetricSecretKey()
	sessCfg := session.DefaultConfig()
	sessCfg.PasetoV4SecretKeyHex = secret.ExportHex()
	sessCfg.RotateMinInterval = 2 * time.Second

	cfg := LoadConfigFromEnv()
	cfg.WebRefreshCookieEnabled = true
	// httptest serves plain HTTP; Secure cookies would be dropped by the client.
	cfg.CookieSecure = false

	h, err := NewHandler(nil, pool, cfg, sessCfg, true)
	if err != nil {
		pool.Close()
		t.Fatalf("NewHandler: %v", err)
	}
	return pool, h
}

func mustApplyAuthSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS lyceum`,
		`CREATE TABLE IF NOT EXISTS lyceum.users (
			id TEXT PRIMARY KEY,
			username TEXT NULL,
			username_norm TEXT NULL,
			email TEXT NULL,
			email_norm TEXT NULL,
			display_name TEXT NULL,
			role TEXT NOT NULL DEFAULT 'student',
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_users_username_norm UNIQUE (username_norm),
			CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
		)`,
		`CREATE TABLE IF NOT EXISTS lyceum.sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_token_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_used_at TIMESTAMPTZ NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ NULL,
			replaced_by_session_id TEXT NULL,
			user_agent TEXT NULL,
			ip INET NULL,
			platform TEXT NOT NULL DEFAULT 'unknown',
			revocation_reason TEXT NULL,
			CONSTRAINT uq_sessions_refresh_token_hash UNIQUE (refresh_token_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS lyceum.audit_log (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			user_id TEXT NULL,
			session_id TEXT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ip INET NULL,
			user_agent TEXT NULL,
			meta JSONB NULL
		)`,
	}
	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("apply schema (stmt %d): %v", i, err)
		}
	}
}
