// Package main provides a CI-friendly smoke test for the Lyceum session
// notifier.
//
// It validates:
//   - signup via the auth API
//   - /ws/session handshake with a bearer access token
//   - initial session.started event on attach
//   - session.rotated fanout after a refresh rotation
//   - sessions.revoked_all fanout after logout_all, followed by close
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type sessionEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Authenticated bool      `json:"authenticated"`
	At            time.Time `json:"at"`
}

type issuedSession struct {
	SessionID    string `json:"session_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type signupReply struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Session issuedSession `json:"session"`
}

type refreshReply struct {
	Session issuedSession `json:"session"`
}

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		origin   = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		password = flag.String("password", "smoke-Pass-1234", "Password for the throwaway smoke user")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	username := fmt.Sprintf("smoke-%d", time.Now().UnixNano())

	signedUp := mustSignup(root, *baseURL, username, *password, *timeout)
	if *verbose {
		fmt.Printf("signed up: user=%s session=%s\n", username, signedUp.Session.SessionID)
	}

	conn := mustDial(root, *baseURL, *origin, signedUp.Session.AccessToken, *timeout)
	defer closeWS(conn)

	started := mustReadEvent(root, conn, *timeout)
	if started.Type != "session.started" || !started.Authenticated {
		fatalf("attach: want session.started authenticated=true, got type=%q authenticated=%v", started.Type, started.Authenticated)
	}
	if started.SessionID != signedUp.Session.SessionID {
		fatalf("attach: session id mismatch: ws=%s api=%s", started.SessionID, signedUp.Session.SessionID)
	}

	rotated := mustRefresh(root, *baseURL, signedUp.Session.RefreshToken, *timeout)
	ev := mustReadEvent(root, conn, *timeout)
	if ev.Type != "session.rotated" || !ev.Authenticated {
		fatalf("rotate: want session.rotated authenticated=true, got type=%q authenticated=%v", ev.Type, ev.Authenticated)
	}
	if ev.SessionID != rotated.Session.SessionID {
		fatalf("rotate: session id mismatch: ws=%s api=%s", ev.SessionID, rotated.Session.SessionID)
	}

	mustLogoutAll(root, *baseURL, rotated.Session.AccessToken, *timeout)
	ev = mustReadEvent(root, conn, *timeout)
	if ev.Type != "sessions.revoked_all" || ev.Authenticated {
		fatalf("logout_all: want sessions.revoked_all authenticated=false, got type=%q authenticated=%v", ev.Type, ev.Authenticated)
	}

	mustAssertClosed(root, conn, *timeout)

	fmt.Printf("OK: user=%s session=%s rotated=%s\n", username, signedUp.Session.SessionID, rotated.Session.SessionID)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("empty origin")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws/session"
	default:
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws/session"
	}
}

func mustSignup(ctx context.Context, base, username, password string, timeout time.Duration) signupReply {
	body := map[string]any{
		"username": username,
		"password": password,
		"platform": "mobile",
	}
	var out signupReply
	mustPostJSON(ctx, base+"/api/auth/signup", "", body, http.StatusCreated, &out, timeout)
	if out.Session.AccessToken == "" || out.Session.RefreshToken == "" {
		fatalf("signup: missing tokens in response")
	}
	return out
}

func mustRefresh(ctx context.Context, base, refreshToken string, timeout time.Duration) refreshReply {
	body := map[string]any{
		"refresh_token": refreshToken,
		"platform":      "mobile",
	}
	var out refreshReply
	mustPostJSON(ctx, base+"/api/auth/refresh", "", body, http.StatusOK, &out, timeout)
	if out.Session.AccessToken == "" || out.Session.RefreshToken == "" {
		fatalf("refresh: missing tokens in response")
	}
	return out
}

func mustLogoutAll(ctx context.Context, base, accessToken string, timeout time.Duration) {
	mustPostJSON(ctx, base+"/api/auth/logout_all", accessToken, nil, http.StatusNoContent, nil, timeout)
}

func mustPostJSON(ctx context.Context, rawURL, bearer string, body any, wantStatus int, out any, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s: %v", rawURL, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, rd)
	if err != nil {
		fatalf("request %s: %v", rawURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("post %s: %v", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("post %s: status=%d want=%d body=%s", rawURL, resp.StatusCode, wantStatus, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("decode %s: %v", rawURL, err)
		}
	}
}

func mustDial(ctx context.Context, base, origin, accessToken string, timeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hdr := http.Header{}
	hdr.Set("Origin", origin)
	hdr.Set("Authorization", "Bearer "+accessToken)

	conn, resp, err := websocket.Dial(ctx, wsURL(base), &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		fatalf("dial %s: status=%d err=%v", wsURL(base), status, err)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustReadEvent(ctx context.Context, conn *websocket.Conn, timeout time.Duration) sessionEvent {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		fatalf("read event: %v", err)
	}
	if typ != websocket.MessageText {
		fatalf("read event: unexpected frame type %v", typ)
	}

	var ev sessionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		fatalf("decode event: %v (raw=%s)", err, strings.TrimSpace(string(data)))
	}
	return ev
}

// mustAssertClosed expects the server to end the connection after the
// terminal event. Any further data frame is a failure.
func mustAssertClosed(ctx context.Context, conn *websocket.Conn, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err == nil {
		fatalf("expected close, got frame: %s", strings.TrimSpace(string(data)))
	}
	var ce websocket.CloseError
	if !errors.As(err, &ce) && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		fatalf("expected close, got read error: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "SMOKE FAIL: "+format+"\n", args...)
	os.Exit(1)
}
