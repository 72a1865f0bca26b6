package session

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service implements the high-level session operations for Lyceum.
//
// It issues sessions (access + refresh), validates access tokens, supports
// per-session and per-user revocation, and performs refresh rotation with
// reuse detection under a strict transactional model.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store

	// pool is used to create explicit transactions for rotation safety.
	pool *pgxpool.Pool
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	UserID    string
	SessionID string
	// PrevSessionID is set on rotation: the session this one replaced.
	PrevSessionID string
	AccessToken   string
	AccessExp     time.Time
	RefreshToken  string
	RefreshExp    time.Time
}

// NewService constructs a Service. The pool backs refresh rotation, which
// must run inside a single transaction; with a nil pool the store must be a
// *MemoryStore, whose mutex provides the equivalent isolation.
func NewService(cfg Config, pool *pgxpool.Pool, store Store, tokens AccessTokenManager) *Service {
	return &Service{cfg: cfg, pool: pool, store: store, tokens: tokens}
}

func (s *Service) refreshTTL(dev DeviceContext) time.Duration {
	switch dev.Platform {
	case PlatformWeb:
		return s.cfg.RefreshTTLWeb
	case PlatformMobile:
		if dev.RememberMe {
			return s.cfg.RefreshTTLMobile
		}
		return s.cfg.RefreshTTLMobileShort
	default:
		// Conservative default.
		return s.cfg.RefreshTTLWeb
	}
}

// IssueSession creates a new session row and returns fresh tokens.
//
// Refresh tokens are opaque random strings; only their hash is persisted.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	refreshPlain, refreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}

	refreshExp := now.Add(s.refreshTTL(dev))

	sessionID, err := s.store.Create(ctx, now, userID, dev, refreshHash, refreshExp)
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(userID, sessionID, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		UserID:       userID,
		SessionID:    sessionID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// ValidateAccessToken verifies an access token and ensures the backing
// session is still active. The DB check is what makes revocation
// authoritative: a signed token alone is never enough.
func (s *Service) ValidateAccessToken(ctx context.Context, token string, now time.Time) (AccessClaims, error) {
	claims, err := s.tokens.Verify(token, now)
	if err != nil {
		return AccessClaims{}, err
	}

	row, err := s.store.GetByID(ctx, claims.SessionID)
	if err != nil {
		return AccessClaims{}, err
	}

	if row.UserID != claims.UserID {
		return AccessClaims{}, ErrInvalidToken
	}
	if row.RevokedAt != nil || row.ReplacedBySessionID != nil {
		return AccessClaims{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return AccessClaims{}, ErrSessionExpired
	}

	return claims, nil
}

// CheckSession reports the live state of a session row independent of any
// token. Long-lived attachments (the session notifier) use this instead of
// re-verifying an access token, which expires long before the attachment
// does. A rotated session returns the replacement id alongside
// ErrSessionRevoked so the caller can follow the chain rather than treat
// rotation as the end of the principal's authentication.
func (s *Service) CheckSession(ctx context.Context, now time.Time, sessionID string) (replacedBy string, err error) {
	row, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if row.ReplacedBySessionID != nil && *row.ReplacedBySessionID != "" {
		return *row.ReplacedBySessionID, ErrSessionRevoked
	}
	if row.RevokedAt != nil {
		return "", ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return "", ErrSessionExpired
	}
	return "", nil
}

// ValidateRefreshToken checks a refresh token against the store without
// rotating it. Used by the web surface to gate server-rendered pages on
// the HttpOnly refresh cookie. Rotation remains the only way to obtain
// new tokens.
func (s *Service) ValidateRefreshToken(ctx context.Context, now time.Time, refreshTokenPlain string) (Row, error) {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	if refreshTokenPlain == "" || len(refreshTokenPlain) > 4096 {
		return Row{}, ErrSessionNotFound
	}

	row, err := s.store.GetByRefreshHash(ctx, hashRefreshTokenHex(refreshTokenPlain))
	if err != nil {
		return Row{}, err
	}
	if row.RevokedAt != nil || row.ReplacedBySessionID != nil {
		return Row{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return Row{}, ErrSessionExpired
	}
	return row, nil
}

// RevokeSession revokes a single session by ID (logout from one device).
func (s *Service) RevokeSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Revoke(ctx, now, sessionID, "logout")
}

// RevokeAll revokes all sessions for a user (logout everywhere).
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAll(ctx, now, userID, "logout")
}

// TouchSession updates last_used_at for a session (best-effort).
func (s *Service) TouchSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Touch(ctx, now, sessionID)
}

// RotateRefresh performs refresh rotation with reuse detection.
//
// Security model:
//   - Lock the session row by refresh hash (SELECT ... FOR UPDATE).
//   - A rotated session's token presented again is reuse: revoke all of the
//     user's sessions and return ErrRefreshReuseDetected.
//   - A revoked session without replacement returns ErrSessionRevoked.
//   - Rotation sooner than RotateMinInterval after last use fails with
//     RefreshRateLimitError.
//   - Otherwise create a new session, revoke the old one, link replaced_by.
func (s *Service) RotateRefresh(ctx context.Context, now time.Time, refreshTokenPlain string, dev DeviceContext) (Issued, error) {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	// Sanity bounds against pathological inputs.
	if refreshTokenPlain == "" || len(refreshTokenPlain) > 4096 {
		return Issued{}, ErrSessionNotFound
	}

	// Hash in memory; the plain token never reaches the database.
	refreshHash := hashRefreshTokenHex(refreshTokenPlain)

	if s.pool == nil {
		if m, ok := s.store.(*MemoryStore); ok {
			return s.rotateRefreshMemory(now, m, refreshHash, dev)
		}
		return Issued{}, ErrConfig
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Issued{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := getByRefreshHashForUpdateTx(ctx, tx, refreshHash)
	if err != nil {
		return Issued{}, err
	}

	if !row.ExpiresAt.After(now) {
		return Issued{}, ErrSessionExpired
	}

	// Reuse detection: a rotated refresh token presented again.
	if row.RevokedAt != nil && row.ReplacedBySessionID != nil {
		if err := revokeAllTx(ctx, tx, now, row.UserID); err != nil {
			return Issued{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Issued{}, err
		}
		return Issued{}, ErrRefreshReuseDetected
	}

	// Revoked without replacement: plain logout.
	if row.RevokedAt != nil {
		return Issued{}, ErrSessionRevoked
	}

	// Rotation throttle per session.
	if s.cfg.RotateMinInterval > 0 && row.LastUsedAt != nil {
		if since := now.Sub(*row.LastUsedAt); since < s.cfg.RotateMinInterval {
			return Issued{}, RefreshRateLimitError{
				SessionID:  row.ID,
				RetryAfter: s.cfg.RotateMinInterval - since,
			}
		}
	}

	newRefreshPlain, newRefreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}
	newRefreshExp := now.Add(s.refreshTTL(dev))

	newSessionID, err := createTx(ctx, tx, now, row.UserID, dev, newRefreshHash, newRefreshExp)
	if err != nil {
		return Issued{}, err
	}

	if err := markRotatedTx(ctx, tx, now, row.ID, newSessionID); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(row.UserID, newSessionID, now)
	if err != nil {
		return Issued{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Issued{}, err
	}

	return Issued{
		UserID:        row.UserID,
		SessionID:     newSessionID,
		PrevSessionID: row.ID,
		AccessToken:   accessToken,
		AccessExp:     accessExp,
		RefreshToken:  newRefreshPlain,
		RefreshExp:    newRefreshExp,
	}, nil
}

// rotateRefreshMemory is the dev-mode rotation path. The MemoryStore has no
// transactions, so the whole sequence runs under its mutex; that gives the
// same single-rotator guarantee as the FOR UPDATE row lock.
func (s *Service) rotateRefreshMemory(now time.Time, m *MemoryStore, refreshHash string, dev DeviceContext) (Issued, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, err := m.getByRefreshHashLocked(refreshHash)
	if err != nil {
		return Issued{}, err
	}

	if !row.ExpiresAt.After(now) {
		return Issued{}, ErrSessionExpired
	}

	if row.RevokedAt != nil && row.ReplacedBySessionID != nil {
		m.revokeAllLocked(now, row.UserID, "refresh_reuse")
		return Issued{}, ErrRefreshReuseDetected
	}

	if row.RevokedAt != nil {
		return Issued{}, ErrSessionRevoked
	}

	if s.cfg.RotateMinInterval > 0 && row.LastUsedAt != nil {
		if since := now.Sub(*row.LastUsedAt); since < s.cfg.RotateMinInterval {
			return Issued{}, RefreshRateLimitError{
				SessionID:  row.ID,
				RetryAfter: s.cfg.RotateMinInterval - since,
			}
		}
	}

	newRefreshPlain, newRefreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}
	newRefreshExp := now.Add(s.refreshTTL(dev))

	newSessionID := m.createLocked(now, row.UserID, dev, newRefreshHash, newRefreshExp)
	m.markRotatedLocked(now, row.ID, newSessionID)

	accessToken, accessExp, err := s.tokens.Issue(row.UserID, newSessionID, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		UserID:        row.UserID,
		SessionID:     newSessionID,
		PrevSessionID: row.ID,
		AccessToken:   accessToken,
		AccessExp:     accessExp,
		RefreshToken:  newRefreshPlain,
		RefreshExp:    newRefreshExp,
	}, nil
}
