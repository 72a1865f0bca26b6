package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lyceum/cmd/internal/auth/session"
)

// The full auth flow without a database: signup, me, refresh rotation,
// reuse detection. Dev mode must behave exactly like the Postgres path.
func TestHandlers_MemoryFlow(t *testing.T) {
	sessCfg := session.DevConfig()
	sessCfg.RotateMinInterval = 0

	h, err := NewHandler(nil, nil, LoadConfigFromEnv(), sessCfg, false)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var signup signupResponse
	doJSON(t, srv, "/api/auth/signup", map[string]any{
		"username": "memflow",
		"password": "correct-horse-battery-staple",
		"platform": "mobile",
	}, http.StatusCreated, &signup)
	if signup.Session.AccessToken == "" || signup.Session.RefreshToken == "" {
		t.Fatalf("expected tokens in mobile signup response")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+signup.Session.AccessToken)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", res.StatusCode)
	}

	var refreshed refreshResponse
	doJSON(t, srv, "/api/auth/refresh", map[string]any{
		"refresh_token": signup.Session.RefreshToken,
		"platform":      "mobile",
	}, http.StatusOK, &refreshed)
	if refreshed.Session.SessionID == signup.Session.SessionID {
		t.Fatalf("rotation must issue a new session id")
	}

	// Presenting the rotated token again is reuse: everything gets revoked.
	doJSON(t, srv, "/api/auth/refresh", map[string]any{
		"refresh_token": signup.Session.RefreshToken,
		"platform":      "mobile",
	}, http.StatusUnauthorized, nil)
	doJSON(t, srv, "/api/auth/refresh", map[string]any{
		"refresh_token": refreshed.Session.RefreshToken,
		"platform":      "mobile",
	}, http.StatusUnauthorized, nil)
}

// Duplicate identifiers must conflict in dev mode like they do in Postgres.
func TestHandlers_MemorySignupConflict(t *testing.T) {
	h, err := NewHandler(nil, nil, LoadConfigFromEnv(), session.DevConfig(), false)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doJSON(t, srv, "/api/auth/signup", map[string]any{
		"username": "taken",
		"password": "pw-one-two-three",
		"platform": "mobile",
	}, http.StatusCreated, nil)
	doJSON(t, srv, "/api/auth/signup", map[string]any{
		"username": " TAKEN ",
		"password": "pw-four-five-six",
		"platform": "mobile",
	}, http.StatusConflict, nil)
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	h, err := NewHandler(nil, nil, LoadConfigFromEnv(), session.DevConfig(), false)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET login, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/me", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST me, got %d", rr.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "Bearer abc123", want: "abc123"},
		{header: "bearer abc123", want: "abc123"},
		{header: "Basic abc123", want: ""},
		{header: "Bearer", want: ""},
		{header: "Bearer   spaced  ", want: "spaced"},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(r); got != tc.want {
			t.Fatalf("bearerToken(%q)=%q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestNormalizePlatform(t *testing.T) {
	tests := []struct {
		in   string
		want session.Platform
	}{
		{in: "web", want: session.PlatformWeb},
		{in: " Web ", want: session.PlatformWeb},
		{in: "mobile", want: session.PlatformMobile},
		{in: "ios", want: session.PlatformMobile},
		{in: "android", want: session.PlatformMobile},
		{in: "", want: session.PlatformUnknown},
		{in: "toaster", want: session.PlatformUnknown},
	}
	for _, tc := range tests {
		if got := normalizePlatform(tc.in); got != tc.want {
			t.Fatalf("normalizePlatform(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLoginRequest(t *testing.T) {
	u := "alice"
	e := "alice@example.com"

	if _, _, _, _, _, ok := normalizeLoginRequest(loginRequest{Username: &u, Password: " "}); ok {
		t.Fatalf("blank password must be rejected")
	}
	if _, _, _, _, _, ok := normalizeLoginRequest(loginRequest{Password: "secret"}); ok {
		t.Fatalf("missing identifier must be rejected")
	}
	if _, _, _, _, _, ok := normalizeLoginRequest(loginRequest{Username: &u, Email: &e, Password: "secret"}); ok {
		t.Fatalf("ambiguous identifier must be rejected")
	}

	username, email, pw, platform, remember, ok := normalizeLoginRequest(loginRequest{
		Username:   &u,
		Password:   "secret",
		Platform:   "web",
		RememberMe: true,
	})
	if !ok {
		t.Fatalf("expected valid request")
	}
	if username == nil || *username != "alice" || email != nil {
		t.Fatalf("unexpected identifiers: %v %v", username, email)
	}
	if pw != "secret" || platform != session.PlatformWeb || !remember {
		t.Fatalf("unexpected normalized fields")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "203.0.113.9:4242"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	if ip := clientIP(r, false); ip == nil || ip.String() != "203.0.113.9" {
		t.Fatalf("without proxy trust, expected remote addr, got %v", ip)
	}
	if ip := clientIP(r, true); ip == nil || ip.String() != "198.51.100.7" {
		t.Fatalf("with proxy trust, expected first forwarded ip, got %v", ip)
	}
}
