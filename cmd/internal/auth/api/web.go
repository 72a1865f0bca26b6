package authapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"lyceum/cmd/internal/auth/session"
)

// Web cookie transport. Browsers never see the refresh token in a response
// body: it travels in an HttpOnly cookie, paired with a JS-readable CSRF
// cookie whose value must be echoed in a header (double submit).

func (h *Handler) shouldUseWebCookieTransport(platform session.Platform) bool {
	return h != nil && h.cfg.WebRefreshCookieEnabled && platform == session.PlatformWeb
}

// setWebSessionCookies installs both cookies and returns the fresh CSRF token.
func (h *Handler) setWebSessionCookies(w http.ResponseWriter, refreshToken string, refreshExp time.Time) (string, error) {
	csrf, err := newOpaqueWebToken(32)
	if err != nil {
		return "", err
	}

	h.writeCookie(w, h.cfg.RefreshCookieName, refreshToken, refreshExp, true)
	h.writeCookie(w, h.cfg.CSRFCookieName, csrf, refreshExp, false)
	return csrf, nil
}

// clearWebSessionCookies expires both cookies. Called on logout regardless
// of which transport the client used; expiring absent cookies is harmless.
func (h *Handler) clearWebSessionCookies(w http.ResponseWriter) {
	if h == nil || w == nil || !h.cfg.WebRefreshCookieEnabled {
		return
	}
	h.writeCookie(w, h.cfg.RefreshCookieName, "", time.Unix(0, 0).UTC(), true)
	h.writeCookie(w, h.cfg.CSRFCookieName, "", time.Unix(0, 0).UTC(), false)
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	v := h.cookieValue(r, h.cfg.RefreshCookieName)
	return v, v != ""
}

// csrfDoubleSubmitValid checks the CSRF cookie against the CSRF header in
// constant time. Required whenever the refresh token arrived via cookie.
func (h *Handler) csrfDoubleSubmitValid(r *http.Request) bool {
	if h == nil || r == nil || !h.cfg.WebRefreshCookieEnabled {
		return false
	}
	fromCookie := h.cookieValue(r, h.cfg.CSRFCookieName)
	fromHeader := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))
	if fromCookie == "" || fromHeader == "" || len(fromCookie) != len(fromHeader) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(fromCookie), []byte(fromHeader)) == 1
}

func (h *Handler) cookieValue(r *http.Request, name string) string {
	if h == nil || r == nil || !h.cfg.WebRefreshCookieEnabled || name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// writeCookie is the single place session cookies are shaped. An expiry at
// the epoch doubles as deletion (MaxAge -1).
func (h *Handler) writeCookie(w http.ResponseWriter, name, value string, exp time.Time, httpOnly bool) {
	if h == nil || w == nil || strings.TrimSpace(name) == "" {
		return
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
	if value == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

func newOpaqueWebToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
