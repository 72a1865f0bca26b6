package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"lyceum/cmd/internal/auth/session"
)

const (
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultRevalidate   = 30 * time.Second
	wsDefaultMaxLifetime  = 12 * time.Hour

	wsMaxPingFailures = 3

	// Origin is required by default; only localhost is allowed unless
	// configured otherwise.
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// AccessValidator verifies an access token at handshake time and checks
// the backing session afterwards. The session check must not depend on
// token lifetime: access tokens expire well inside a connection's
// lifetime while the session stays live. *session.Service satisfies it.
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, token string, now time.Time) (session.AccessClaims, error)
	CheckSession(ctx context.Context, now time.Time, sessionID string) (replacedBy string, err error)
}

// WSNotifier is the WebSocket endpoint behind GET /ws/session. It
// authenticates the bearer token at handshake time, then pushes an
// Event whenever the caller's session state transitions, so an attached
// client can re-run the landing decision. It never reads application
// frames from the peer.
type WSNotifier struct {
	log      *slog.Logger
	auth     AccessValidator
	notifier *Notifier

	devInsecure    bool
	originRequired bool
	allowedOrigins []string
	originPatterns []string

	writeTimeout time.Duration

	// revalidateEvery re-checks the session against the store so that
	// revocations performed outside this process still disconnect the
	// client.
	revalidateEvery time.Duration
	maxLifetime     time.Duration

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewWSNotifier constructs the endpoint with secure defaults, reading
// LYCEUM_WS_* overrides from the environment.
func NewWSNotifier(log *slog.Logger, auth AccessValidator, notifier *Notifier) *WSNotifier {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if notifier == nil {
		notifier = NewNotifier()
	}

	n := &WSNotifier{log: log, auth: auth, notifier: notifier}

	n.devInsecure = envBoolWS("LYCEUM_WS_DEV_INSECURE", false)
	n.originRequired = envBoolWS("LYCEUM_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	n.allowedOrigins = envCSVWS("LYCEUM_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept authorizes same-host origins by default; cross
	// origin requires OriginPatterns. Derive them from the allowlist so
	// the two layers agree.
	n.originPatterns = deriveOriginPatterns(n.allowedOrigins)

	n.writeTimeout = envDurationWS("LYCEUM_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	n.revalidateEvery = envDurationWS("LYCEUM_WS_REVALIDATE_INTERVAL", wsDefaultRevalidate)
	n.maxLifetime = envDurationWS("LYCEUM_WS_MAX_LIFETIME", wsDefaultMaxLifetime)

	n.heartbeatEvery = envDurationWS("LYCEUM_WS_HEARTBEAT_INTERVAL", 25*time.Second)
	n.heartbeatTimeout = envDurationWS("LYCEUM_WS_HEARTBEAT_TIMEOUT", 10*time.Second)

	return n
}

// Notifier returns the underlying fan-out hub so the auth layer can
// publish into it.
func (n *WSNotifier) Notifier() *Notifier { return n.notifier }

func (n *WSNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.HandleWS(w, r)
}

// HandleWS upgrades the request and streams session events until the
// peer leaves, the session dies, or the lifetime cap is hit.
func (n *WSNotifier) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := n.enforceOrigin(r); err != nil {
		n.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	token := bearerToken(r)
	if token == "" || n.auth == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := n.auth.ValidateAccessToken(r.Context(), token, time.Now().UTC())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     n.originPatterns,
		InsecureSkipVerify: n.devInsecure,
	})
	if err != nil {
		n.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	ctx, cancel := context.WithTimeout(r.Context(), n.maxLifetime)
	defer cancel()

	events, unsubscribe := n.notifier.Subscribe(claims.UserID)
	defer unsubscribe()

	// The session backing this connection. Rotation moves it forward;
	// revalidation always checks the current one.
	sid := claims.SessionID

	// Discard inbound frames; the peer only listens. Read errors mean
	// the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	// Initial state so the client can evaluate immediately on attach.
	if err := n.writeEvent(ctx, conn, Event{
		Type:          EventSessionStarted,
		SessionID:     sid,
		Authenticated: true,
		At:            time.Now().UTC(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(n.revalidateEvery)
	defer ticker.Stop()
	heartbeat := time.NewTicker(n.heartbeatEvery)
	defer heartbeat.Stop()

	pingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == EventSessionRotated && ev.SessionID != "" {
				sid = ev.SessionID
			}
			if err := n.writeEvent(ctx, conn, ev); err != nil {
				n.log.Info("ws.write.fail", "user_id", claims.UserID, "err", err)
				return
			}
			if !ev.Authenticated {
				_ = conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}

		case <-heartbeat.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, n.heartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()
			if err != nil {
				pingFailures++
				if pingFailures >= wsMaxPingFailures {
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			pingFailures = 0

		case <-ticker.C:
			// Catch revocations that never flowed through the in-process
			// notifier (another instance, direct DB ops). This checks the
			// session row, never the access token: the token expires long
			// before a live connection does, and an expired token is not
			// a session transition.
			replacedBy, err := n.auth.CheckSession(ctx, time.Now().UTC(), sid)
			switch {
			case err == nil:
			case replacedBy != "":
				// Rotated out of band; the principal stays authenticated
				// under the replacement session.
				sid = replacedBy
			case errors.Is(err, session.ErrSessionRevoked),
				errors.Is(err, session.ErrSessionExpired),
				errors.Is(err, session.ErrSessionNotFound):
				_ = n.writeEvent(ctx, conn, Event{
					Type:          EventSessionRevoked,
					SessionID:     sid,
					Authenticated: false,
					At:            time.Now().UTC(),
				})
				_ = conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			default:
				// A store hiccup is not a transition; keep the connection.
				n.log.Info("ws.revalidate.fail", "session_id", sid, "err", err)
			}
		}
	}
}

func (n *WSNotifier) writeEvent(parent context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(parent, n.writeTimeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
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

// ---- origin policy ----

func (n *WSNotifier) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if n.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(n.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range n.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
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

func envDurationWS(key string, def time.Duration) time.Duration {
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

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
