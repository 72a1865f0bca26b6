package app

import (
	"strings"
	"testing"
)

// The startup banner prints URLs a developer can actually open, so
// wildcard binds must be rewritten to loopback.
func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		addr string
		want string
	}{
		{name: "loopback v4", addr: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "wildcard v4", addr: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "wildcard v6", addr: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "empty host", addr: ":8080", want: "http://127.0.0.1:8080"},
		{name: "real v6 host", addr: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
		{name: "hostname", addr: "lyceum.internal:443", want: "http://lyceum.internal:443"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := runtimeBaseURL(tc.addr); got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.addr, got, tc.want)
			}
		})
	}

	// Unparseable addresses pass through with a scheme; the banner is
	// best-effort, never a startup failure.
	if got := runtimeBaseURL("garbage"); got != "http://garbage" {
		t.Fatalf("unparseable addr: got %q", got)
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://127.0.0.1:8080":      "ws://127.0.0.1:8080",
		"https://lyceum.example.com": "wss://lyceum.example.com",
		"127.0.0.1:8080":             "ws://127.0.0.1:8080",
	}
	for in, want := range cases {
		got := wsBaseURL(in)
		if got != want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", in, got, want)
		}
		if !strings.HasPrefix(got, "ws") {
			t.Fatalf("wsBaseURL(%q) must produce a ws scheme, got %q", in, got)
		}
	}
}
