package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lyceum/cmd/identity"
	"lyceum/cmd/internal/auth/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	dbEnabled bool
	pool      *pgxpool.Pool

	identity identity.Store
	sessions *session.Service
	sessCfg  session.Config

	events SessionEventSink

	dummyHash string
}

// NewHandler constructs an auth Handler. With dbEnabled false it runs on
// in-memory stores (dev mode): same endpoints, nothing persisted.
func NewHandler(log *slog.Logger, pool *pgxpool.Pool, cfg Config, sessCfg session.Config, dbEnabled bool, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		dbEnabled: dbEnabled,
		pool:      pool,
		sessCfg:   sessCfg,
		events:    NoopSessionEvents{},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	if dbEnabled {
		if pool == nil {
			return nil, errors.New("auth: nil db pool")
		}
		idStore, err := identity.NewPostgresStore(pool)
		if err != nil {
			return nil, err
		}
		h.identity = idStore

		tokens, err := session.NewPasetoV4PublicManager(sessCfg)
		if err != nil {
			return nil, err
		}
		h.sessions = session.NewService(sessCfg, pool, session.NewPostgresStore(pool), tokens)
	} else {
		h.identity = identity.NewMemoryStore()

		tokens, err := session.NewPasetoV4PublicManager(sessCfg)
		if err != nil {
			return nil, err
		}
		h.sessions = session.NewService(sessCfg, nil, session.NewMemoryStore(), tokens)
	}

	// Dummy hash for timing-resistant login checks against unknown users.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/signup", h.handleSignup)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/logout_all", h.handleLogoutAll)
	mux.HandleFunc("/api/auth/me", h.handleMe)
}

// SessionService returns the underlying session service.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// IdentityStore returns the underlying identity store (Postgres or memory).
func (h *Handler) IdentityStore() identity.Store {
	if h == nil {
		return nil
	}
	return h.identity
}

// CookieConfig exposes the cookie settings so the web surface can read
// the refresh/CSRF cookie names it shares with this handler.
func (h *Handler) CookieConfig() Config {
	if h == nil {
		return Config{}
	}
	return h.cfg
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.cfg.SignupEnabled {
		writeError(w, http.StatusForbidden, "signup_disabled", "signup is disabled")
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	username := trimPtr(req.Username)
	email := trimPtr(req.Email)
	if username == nil && email == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "username or email is required")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	// Self-service signup may pick student or teacher; admin is never
	// self-assignable.
	role := identity.ParseRole(req.Role)
	if role == identity.RoleAdmin {
		role = identity.RoleStudent
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	platform := normalizePlatform(req.Platform)

	res, err := h.identity.CreateUser(ctx, identity.CreateUserInput{
		Username:    username,
		Email:       email,
		DisplayName: trimPtr(req.DisplayName),
		Password:    req.Password,
		Role:        role,
		Now:         now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "username or email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	dev := session.DeviceContext{
		Platform:   platform,
		RememberMe: req.RememberMe,
		UserAgent:  ua,
		IP:         ip,
	}
	issued, err := h.sessions.IssueSession(ctx, now, res.User.ID, dev)
	if err != nil {
		h.log.Error("auth.signup.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditSignup(ctx, res.User.ID, issued.SessionID, ip, ua)
	h.events.SessionStarted(res.User.ID, issued.SessionID)

	respSession := toSessionResponse(issued)
	if h.shouldUseWebCookieTransport(platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.signup.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		User:    toUserResponse(res.User),
		Session: respSession,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	username, email, password, platform, rememberMe, ok := normalizeLoginRequest(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "username/email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	identifier := loginIdentifier(username, email)

	// IP-based throttling before any DB auth work.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, nil, ip, ua, identifier, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}
	// Identifier-based progressive lockout.
	if blocked, retryAfter, err := h.checkLoginIdentifierThrottle(ctx, identifier, now); err != nil {
		h.log.Error("auth.login.throttle_identifier.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, nil, ip, ua, identifier, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	userAuth, err := h.lookupUserForLogin(ctx, username, email)
	if err != nil {
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(password, h.dummyHash)
		}
		h.auditLoginFailed(ctx, nil, ip, ua, identifier, "not_found")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	okPw, err := identity.VerifyPassword(password, userAuth.PasswordHash)
	if err != nil || !okPw {
		h.auditLoginFailed(ctx, &userAuth.User.ID, ip, ua, identifier, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	dev := session.DeviceContext{
		Platform:   platform,
		RememberMe: rememberMe,
		UserAgent:  ua,
		IP:         ip,
	}

	issued, err := h.sessions.IssueSession(ctx, now, userAuth.User.ID, dev)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLoginSuccess(ctx, &userAuth.User.ID, issued.SessionID, ip, ua, identifier)
	h.events.SessionStarted(userAuth.User.ID, issued.SessionID)

	respSession := toSessionResponse(issued)
	if h.shouldUseWebCookieTransport(platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.login.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusOK, loginResponse{
		User:    toUserResponse(userAuth.User),
		Session: respSession,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	dev := session.DeviceContext{
		Platform:   normalizePlatform(req.Platform),
		RememberMe: req.RememberMe,
		UserAgent:  ua,
		IP:         ip,
	}
	if fromCookie && dev.Platform == session.PlatformUnknown {
		dev.Platform = session.PlatformWeb
	}

	issued, err := h.sessions.RotateRefresh(ctx, now, refreshToken, dev)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshRateLimited):
			var rlErr session.RefreshRateLimitError
			if errors.As(err, &rlErr) {
				h.auditRefreshRateLimited(ctx, rlErr.SessionID, ip, ua, rlErr.RetryAfter)
				writeRateLimitedError(w, rlErr.RetryAfter, "refresh_rate_limited", "refresh attempted too frequently")
				return
			}
			h.auditRefreshRateLimited(ctx, "", ip, ua, 0)
			writeRateLimitedError(w, 0, "refresh_rate_limited", "refresh attempted too frequently")
			return
		case errors.Is(err, session.ErrRefreshReuseDetected):
			h.auditRefreshReuse(ctx, ip, ua)
			writeError(w, http.StatusUnauthorized, "refresh_reuse_detected", "refresh token reuse detected")
		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrSessionRevoked), errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditRefreshSuccess(ctx, issued.SessionID, ip, ua)
	h.events.SessionRotated(issued.UserID, issued.PrevSessionID, issued.SessionID)

	respSession := toSessionResponse(issued)
	if fromCookie || h.shouldUseWebCookieTransport(dev.Platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.refresh.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Session: respSession,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.sessions.RevokeSession(ctx, now, claims.SessionID); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogout(ctx, claims.UserID, claims.SessionID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.events.SessionRevoked(claims.UserID, claims.SessionID)
	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.sessions.RevokeAll(ctx, now, claims.UserID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, claims.UserID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.events.SessionsRevoked(claims.UserID)
	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	u, err := h.identity.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.AccessClaims{}, false
	}
	claims, err := h.sessions.ValidateAccessToken(r.Context(), token, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

func normalizeLoginRequest(req loginRequest) (username *string, email *string, password string, platform session.Platform, rememberMe bool, ok bool) {
	username = trimPtr(req.Username)
	email = trimPtr(req.Email)
	password = strings.TrimSpace(req.Password)
	if password == "" {
		return nil, nil, "", session.PlatformUnknown, false, false
	}
	if (username == nil && email == nil) || (username != nil && email != nil) {
		return nil, nil, "", session.PlatformUnknown, false, false
	}
	platform = normalizePlatform(req.Platform)
	return username, email, password, platform, req.RememberMe, true
}

func (h *Handler) lookupUserForLogin(ctx context.Context, username, email *string) (identity.UserAuth, error) {
	if h.identity == nil {
		return identity.UserAuth{}, identity.OpError{Op: "auth.lookupUser", Kind: identity.ErrNotFound}
	}
	if username != nil {
		return h.identity.GetUserAuthByUsername(ctx, *username)
	}
	if email != nil {
		return h.identity.GetUserAuthByEmail(ctx, *email)
	}
	return identity.UserAuth{}, identity.OpError{Op: "auth.lookupUser", Kind: identity.ErrInvalidInput}
}
