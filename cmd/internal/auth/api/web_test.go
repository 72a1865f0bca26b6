package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lyceum/cmd/internal/auth/session"
)

func newWebCookieHandler() *Handler {
	return &Handler{cfg: Config{
		WebRefreshCookieEnabled: true,
		RefreshCookieName:       "lyceum_refresh_token",
		CSRFCookieName:          "lyceum_csrf_token",
		CSRFHeaderName:          "X-CSRF-Token",
		CookiePath:              "/",
		CookieSecure:            true,
		CookieSameSite:          http.SameSiteLaxMode,
	}}
}

func TestShouldUseWebCookieTransport(t *testing.T) {
	t.Parallel()

	h := newWebCookieHandler()
	if !h.shouldUseWebCookieTransport(session.PlatformWeb) {
		t.Fatalf("web platform must use cookie transport")
	}
	for _, p := range []session.Platform{session.PlatformMobile, session.PlatformUnknown} {
		if h.shouldUseWebCookieTransport(p) {
			t.Fatalf("platform %q must not use cookie transport", p)
		}
	}

	h.cfg.WebRefreshCookieEnabled = false
	if h.shouldUseWebCookieTransport(session.PlatformWeb) {
		t.Fatalf("disabled transport must stay off for every platform")
	}
}

func TestSetAndClearWebSessionCookies(t *testing.T) {
	t.Parallel()

	h := newWebCookieHandler()
	rr := httptest.NewRecorder()
	exp := time.Now().UTC().Add(30 * time.Minute)

	csrf, err := h.setWebSessionCookies(rr, "refresh-token-123", exp)
	if err != nil {
		t.Fatalf("setWebSessionCookies: %v", err)
	}
	if csrf == "" {
		t.Fatalf("expected a fresh csrf token")
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		switch c.Name {
		case "lyceum_refresh_token":
			if !c.HttpOnly {
				t.Fatalf("refresh cookie must be HttpOnly")
			}
			if c.Value != "refresh-token-123" {
				t.Fatalf("unexpected refresh cookie value")
			}
		case "lyceum_csrf_token":
			if c.HttpOnly {
				t.Fatalf("csrf cookie must be readable by the browser")
			}
			if c.Value != csrf {
				t.Fatalf("csrf cookie must carry the returned token")
			}
		default:
			t.Fatalf("unexpected cookie %q", c.Name)
		}
		if !c.Secure || c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("cookie %q lost its security attributes", c.Name)
		}
	}

	// Clearing must delete both cookies, not just blank them.
	rr = httptest.NewRecorder()
	h.clearWebSessionCookies(rr)
	for _, c := range rr.Result().Cookies() {
		if c.Value != "" || c.MaxAge != -1 {
			t.Fatalf("cookie %q not expired: value=%q maxage=%d", c.Name, c.Value, c.MaxAge)
		}
	}
}

func TestCSRFDoubleSubmitValidation(t *testing.T) {
	t.Parallel()

	h := newWebCookieHandler()

	request := func(cookie, header string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		if cookie != "" {
			r.AddCookie(&http.Cookie{Name: "lyceum_csrf_token", Value: cookie})
		}
		if header != "" {
			r.Header.Set("X-CSRF-Token", header)
		}
		return r
	}

	if !h.csrfDoubleSubmitValid(request("csrf-abc", "csrf-abc")) {
		t.Fatalf("matching cookie and header must pass")
	}
	if h.csrfDoubleSubmitValid(request("csrf-abc", "csrf-def")) {
		t.Fatalf("mismatch must fail")
	}
	if h.csrfDoubleSubmitValid(request("csrf-abc", "")) {
		t.Fatalf("missing header must fail")
	}
	if h.csrfDoubleSubmitValid(request("", "csrf-abc")) {
		t.Fatalf("missing cookie must fail")
	}
}

func TestRefreshTokenFromCookie(t *testing.T) {
	t.Parallel()

	h := newWebCookieHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	if _, ok := h.refreshTokenFromCookie(req); ok {
		t.Fatalf("no cookie must yield no token")
	}

	req.AddCookie(&http.Cookie{Name: "lyceum_refresh_token", Value: " tok-123 "})
	token, ok := h.refreshTokenFromCookie(req)
	if !ok || token != "tok-123" {
		t.Fatalf("expected trimmed cookie token, got (%q, %v)", token, ok)
	}
}
