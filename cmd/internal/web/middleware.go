package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"lyceum/cmd/identity"
	"lyceum/cmd/internal/auth/session"
	"lyceum/cmd/internal/gate"
)

// SessionResolver validates tokens against the session store.
// *session.Service satisfies it.
type SessionResolver interface {
	ValidateAccessToken(ctx context.Context, token string, now time.Time) (session.AccessClaims, error)
	ValidateRefreshToken(ctx context.Context, now time.Time, refreshTokenPlain string) (session.Row, error)
}

// UserLoader resolves the principal's user record.
// Any identity.Store satisfies it.
type UserLoader interface {
	GetUserByID(ctx context.Context, userID string) (identity.User, error)
}

// Principal is the authenticated visitor as seen by page handlers.
type Principal struct {
	UserID      string
	SessionID   string
	Role        string
	DisplayName string
}

type ctxKey int

const principalKey ctxKey = 0

// PrincipalFrom returns the authenticated principal stashed by
// RequireSession, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// resolveSession turns the request's credentials into a gate.Session.
// Bearer tokens win; otherwise the HttpOnly refresh cookie is checked
// read-only. Any failure yields the unauthenticated session: the
// landing decision treats unproven state as logged out.
func (h *Handler) resolveSession(r *http.Request) (gate.Session, Principal) {
	ctx := r.Context()
	now := time.Now().UTC()

	if token := bearerToken(r); token != "" && h.sessions != nil {
		claims, err := h.sessions.ValidateAccessToken(ctx, token, now)
		if err == nil {
			return h.sessionForUser(ctx, claims.UserID, claims.SessionID)
		}
		return gate.Session{}, Principal{}
	}

	if h.sessions != nil && h.refreshCookieName != "" {
		if c, err := r.Cookie(h.refreshCookieName); err == nil {
			if v := strings.TrimSpace(c.Value); v != "" {
				row, err := h.sessions.ValidateRefreshToken(ctx, now, v)
				if err == nil {
					return h.sessionForUser(ctx, row.UserID, row.ID)
				}
			}
		}
	}

	return gate.Session{}, Principal{}
}

func (h *Handler) sessionForUser(ctx context.Context, userID, sessionID string) (gate.Session, Principal) {
	p := Principal{UserID: userID, SessionID: sessionID, DisplayName: userID}

	if h.users != nil {
		if u, err := h.users.GetUserByID(ctx, userID); err == nil {
			p.Role = string(u.Role)
			if u.DisplayName != nil && *u.DisplayName != "" {
				p.DisplayName = *u.DisplayName
			} else if u.Username != nil && *u.Username != "" {
				p.DisplayName = *u.Username
			}
		}
	}

	return gate.Session{User: &gate.User{ID: userID, Role: p.Role}}, p
}

// RequireSession gates a page handler on an authenticated session.
// Browsers get 303 to the login page; API-shaped requests get 401.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, principal := h.resolveSession(r)
		if !sess.Authenticated() {
			if wantsHTML(r) {
				http.Redirect(w, r, gate.PathLogin, http.StatusSeeOther)
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"}}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
