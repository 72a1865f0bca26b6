package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require LYCEUM_DATABASE_URL.
// When Postgres is unreachable the tests skip instead of failing, to keep
// local runs fast.

func TestPostgresStore_CreateUser_ConflictUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { dropTestSchema(pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u1 := "Maya"
	if _, err := s.CreateUser(ctx, CreateUserInput{
		Username: &u1,
		Password: "very-strong-password-1",
		Now:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	// Same username, different case, must conflict.
	u2 := "mAyA"
	_, err := s.CreateUser(ctx, CreateUserInput{
		Username: &u2,
		Password: "very-strong-password-2",
		Now:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_GetUserAuth_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { dropTestSchema(pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	email := "Teacher@Example.com"
	res, err := s.CreateUser(ctx, CreateUserInput{
		Email:    &email,
		Password: "very-strong-password-3",
		Role:     RoleTeacher,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	auth, err := s.GetUserAuthByEmail(ctx, " teacher@example.COM ")
	if err != nil {
		t.Fatalf("get auth: %v", err)
	}
	if auth.User.ID != res.User.ID {
		t.Fatalf("id mismatch: %q vs %q", auth.User.ID, res.User.ID)
	}
	if auth.User.Role != RoleTeacher {
		t.Fatalf("role mismatch: %q", auth.User.Role)
	}

	ok, err := VerifyPassword("very-strong-password-3", auth.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored credential does not verify: ok=%v err=%v", ok, err)
	}

	u, err := s.GetUserByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u.EmailNorm == nil || *u.EmailNorm != "teacher@example.com" {
		t.Fatalf("email_norm not canonical: %v", u.EmailNorm)
	}
}

func TestPostgresStore_GetUserByID_NotFound(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { dropTestSchema(pool, schema) })
	mustApplyIdentitySchema(t, pool, schema)

	s := mustNewIdentityStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.GetUserByID(ctx, "01JZZZZZZZZZZZZZZZZZZZZZZZ")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

// ---- helpers ----

func mustNewIdentityStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("LYCEUM_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: LYCEUM_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse LYCEUM_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "lyceum_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+fmt.Sprintf("%q", schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func dropTestSchema(pool *pgxpool.Pool, schema string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+fmt.Sprintf("%q", schema)+` CASCADE`)
}

func mustApplyIdentitySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	users := fmt.Sprintf("%q.%q", schema, "users")
	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  username TEXT NULL,
  username_norm TEXT NULL,
  email TEXT NULL,
  email_norm TEXT NULL,
  display_name TEXT NULL,
  role TEXT NOT NULL DEFAULT 'student',
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_username_norm UNIQUE (username_norm),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
);
`, users)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout")
}
