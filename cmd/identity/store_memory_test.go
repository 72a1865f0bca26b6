package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res, err := store.CreateUser(ctx, CreateUserInput{
		Username:    strPtr(" Maya.K "),
		Email:       strPtr(" Maya@Example.COM "),
		DisplayName: strPtr("Maya"),
		Password:    "a long enough password 1!",
		Role:        RoleTeacher,
		Now:         now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u := res.User
	if u.ID == "" || u.Role != RoleTeacher || !u.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.UsernameNorm == nil || *u.UsernameNorm != "maya.k" {
		t.Fatalf("username not normalized: %+v", u.UsernameNorm)
	}
	if u.EmailNorm == nil || *u.EmailNorm != "maya@example.com" {
		t.Fatalf("email not normalized: %+v", u.EmailNorm)
	}

	got, err := store.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("wrong user by id")
	}

	// Auth lookups key on the normalized identifier, whatever the caller sends.
	auth, err := store.GetUserAuthByUsername(ctx, "  MAYA.k ")
	if err != nil {
		t.Fatalf("GetUserAuthByUsername: %v", err)
	}
	if auth.User.ID != u.ID || auth.PasswordHash == "" {
		t.Fatalf("unexpected auth record: %+v", auth.User)
	}
	if ok, err := VerifyPassword("a long enough password 1!", auth.PasswordHash); err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}

	if _, err := store.GetUserAuthByEmail(ctx, "maya@example.com"); err != nil {
		t.Fatalf("GetUserAuthByEmail: %v", err)
	}
}

func TestMemoryStore_CreateValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.CreateUser(ctx, CreateUserInput{Password: "pw"})
	if !IsInvalidInput(err) {
		t.Fatalf("missing identifier: expected invalid input, got %v", err)
	}

	_, err = store.CreateUser(ctx, CreateUserInput{Username: strPtr("maya"), Password: "  "})
	if !IsInvalidInput(err) {
		t.Fatalf("blank password: expected invalid input, got %v", err)
	}

	// Invalid roles quietly fall back to student.
	res, err := store.CreateUser(ctx, CreateUserInput{
		Username: strPtr("rolefallback"),
		Password: "a long enough password 1!",
		Role:     Role("superuser"),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if res.User.Role != RoleStudent {
		t.Fatalf("expected student fallback, got %q", res.User.Role)
	}
}

func TestMemoryStore_Conflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.CreateUser(ctx, CreateUserInput{
		Username: strPtr("maya"),
		Email:    strPtr("maya@example.com"),
		Password: "a long enough password 1!",
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := store.CreateUser(ctx, CreateUserInput{
		Username: strPtr(" MAYA "),
		Password: "another password 2!",
	})
	if !IsConflict(err) {
		t.Fatalf("duplicate username: expected conflict, got %v", err)
	}
	var conflict ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected username conflict field, got %v", err)
	}

	_, err = store.CreateUser(ctx, CreateUserInput{
		Username: strPtr("maya2"),
		Email:    strPtr("MAYA@example.com"),
		Password: "another password 2!",
	})
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Fatalf("expected email conflict field, got %v", err)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetUserByID(ctx, "01JZZZZZZZZZZZZZZZZZZZZZZZ"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetUserAuthByUsername(ctx, "ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetUserAuthByEmail(ctx, "ghost@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
