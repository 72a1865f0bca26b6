package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		// Anything unrecognized, including unset, lands on info.
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

// The default handler is JSON; operational log lines must stay
// machine-parseable whatever attrs the call site attaches.
func TestJSONLoggerOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: parseLogLevel("warn")}))

	log.Info("auth.login.ok", "user_id", "u1")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", buf.String())
	}

	log.Warn("auth.login.throttled", "retry_after_ms", 1500)
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if line["msg"] != "auth.login.throttled" {
		t.Fatalf("unexpected msg: %v", line["msg"])
	}
	if _, ok := line["retry_after_ms"]; !ok {
		t.Fatalf("expected attr in log line: %q", buf.String())
	}
}
