// Package identity implements Lyceum's user and credential foundation.
//
// It owns the User principal (id, login identifiers, platform role),
// Argon2id password hashing, and the Postgres-backed identity store used
// by the auth HTTP layer. Session issuance and validation live in
// cmd/internal/auth/session; this package never touches tokens beyond
// hashing primitives.
package identity
