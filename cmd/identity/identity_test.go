package identity

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Role
	}{
		{in: "student", want: RoleStudent},
		{in: "Teacher", want: RoleTeacher},
		{in: " ADMIN ", want: RoleAdmin},
		{in: "", want: RoleStudent},
		{in: "superuser", want: RoleStudent},
	}

	for _, tc := range cases {
		if got := ParseRole(tc.in); got != tc.want {
			t.Fatalf("ParseRole(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := NormalizeUsername("  Maya.K "); got != "maya.k" {
		t.Fatalf("NormalizeUsername: %q", got)
	}
	if got := NormalizeEmail(" Maya@Example.COM "); got != "maya@example.com" {
		t.Fatalf("NormalizeEmail: %q", got)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("a long enough password 1!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("a long enough password 1!", h)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = VerifyPassword("some other password", h)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestNewOpaqueToken(t *testing.T) {
	t.Parallel()

	a, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	b, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if a == b {
		t.Fatalf("tokens must be random")
	}
	if len(a) < 40 {
		t.Fatalf("token too short: %d", len(a))
	}
}

func TestNewULID_Sortable(t *testing.T) {
	t.Parallel()

	early, err := NewULID(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	late, err := NewULID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(early) != 26 || len(late) != 26 {
		t.Fatalf("unexpected ULID lengths %d/%d", len(early), len(late))
	}
	if !(early < late) {
		t.Fatalf("ULIDs must sort by timestamp: %q vs %q", early, late)
	}
}
