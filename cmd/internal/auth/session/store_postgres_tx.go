package session

import (
	"context"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// Transaction-scoped variants of the store operations used by RotateRefresh.
// Rotation must observe and mutate the session chain under one row lock.

func getByRefreshHashForUpdateTx(ctx context.Context, tx pgx.Tx, refreshHash string) (Row, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM lyceum.sessions
		WHERE refresh_token_hash = $1
		FOR UPDATE
	`, refreshHash)
	return scanSessionRow(row)
}

func createTx(
	ctx context.Context,
	tx pgx.Tx,
	now time.Time,
	userID string,
	dev DeviceContext,
	refreshHash string,
	expiresAt time.Time,
) (string, error) {
	id := ulid.Make().String()

	var ip net.IP
	if dev.IP != nil {
		ip = dev.IP
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO lyceum.sessions (
			id, user_id, refresh_token_hash,
			created_at, last_used_at, expires_at, revoked_at,
			replaced_by_session_id, user_agent, ip, platform, revocation_reason
		) VALUES (
			$1, $2, $3,
			$4, $4, $5, NULL,
			NULL, $6, $7, $8, NULL
		)
	`, id, userID, refreshHash, now, expiresAt, nullIfEmpty(dev.UserAgent), ip, string(dev.Platform))
	if err != nil {
		return "", err
	}

	return id, nil
}

func markRotatedTx(ctx context.Context, tx pgx.Tx, now time.Time, oldID string, newID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE lyceum.sessions
		SET
			last_used_at = $2,
			revoked_at = $2,
			replaced_by_session_id = $3,
			revocation_reason = 'rotation'
		WHERE id = $1
	`, oldID, now, newID)
	return err
}

func revokeAllTx(ctx context.Context, tx pgx.Tx, now time.Time, userID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE lyceum.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, 'reuse_detected')
		WHERE user_id = $1
	`, userID, now)
	return err
}
