package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore keeps session rows in process memory. It backs dev mode,
// where Lyceum runs without Postgres: state is lost on restart and never
// shared across instances.
//
// GetByRefreshHashForUpdate cannot lock a row the way Postgres does;
// rotation safety comes from the Service, which performs the whole
// rotation sequence under this store's mutex (rotateRefreshMemory).
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]*Row
	byHash map[string]string
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]*Row),
		byHash: make(map[string]string),
	}
}

// Create inserts a new session row and returns its ULID.
func (m *MemoryStore) Create(ctx context.Context, now time.Time, userID string, dev DeviceContext, refreshHash string, expiresAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(now, userID, dev, refreshHash, expiresAt), nil
}

func (m *MemoryStore) createLocked(now time.Time, userID string, dev DeviceContext, refreshHash string, expiresAt time.Time) string {
	id := ulid.Make().String()
	last := now
	m.rows[id] = &Row{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: refreshHash,
		CreatedAt:        now,
		LastUsedAt:       &last,
		ExpiresAt:        expiresAt,
		Platform:         dev.Platform,
	}
	m.byHash[refreshHash] = id
	return id
}

// GetByID loads a session row by ID.
func (m *MemoryStore) GetByID(ctx context.Context, sessionID string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[sessionID]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return cloneRow(row), nil
}

// GetByRefreshHash loads a session row by refresh token hash.
func (m *MemoryStore) GetByRefreshHash(ctx context.Context, refreshHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, err := m.getByRefreshHashLocked(refreshHash)
	if err != nil {
		return Row{}, err
	}
	return cloneRow(row), nil
}

// GetByRefreshHashForUpdate is GetByRefreshHash here; see the type doc
// for how rotation isolation is provided instead.
func (m *MemoryStore) GetByRefreshHashForUpdate(ctx context.Context, refreshHash string) (Row, error) {
	return m.GetByRefreshHash(ctx, refreshHash)
}

func (m *MemoryStore) getByRefreshHashLocked(refreshHash string) (*Row, error) {
	id, ok := m.byHash[refreshHash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return row, nil
}

// MarkRotated revokes the old session and links it to its replacement.
func (m *MemoryStore) MarkRotated(ctx context.Context, now time.Time, sessionID string, replacedBy string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markRotatedLocked(now, sessionID, replacedBy)
	return nil
}

func (m *MemoryStore) markRotatedLocked(now time.Time, sessionID string, replacedBy string) {
	row, ok := m.rows[sessionID]
	if !ok {
		return
	}
	ts := now
	rb := replacedBy
	row.LastUsedAt = &ts
	row.RevokedAt = &ts
	row.ReplacedBySessionID = &rb
}

// Touch updates last_used_at for a session.
func (m *MemoryStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[sessionID]; ok {
		ts := now
		row.LastUsedAt = &ts
	}
	return nil
}

// Revoke revokes a single session (idempotent).
func (m *MemoryStore) Revoke(ctx context.Context, now time.Time, sessionID string, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[sessionID]; ok && row.RevokedAt == nil {
		ts := now
		row.RevokedAt = &ts
	}
	return nil
}

// RevokeAll revokes all sessions for a user (idempotent).
func (m *MemoryStore) RevokeAll(ctx context.Context, now time.Time, userID string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeAllLocked(now, userID, reason)
	return nil
}

func (m *MemoryStore) revokeAllLocked(now time.Time, userID string, _ string) {
	for _, row := range m.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			ts := now
			row.RevokedAt = &ts
		}
	}
}

// cloneRow copies a row so callers never alias store-internal pointers.
func cloneRow(r *Row) Row {
	out := *r
	if r.LastUsedAt != nil {
		v := *r.LastUsedAt
		out.LastUsedAt = &v
	}
	if r.RevokedAt != nil {
		v := *r.RevokedAt
		out.RevokedAt = &v
	}
	if r.ReplacedBySessionID != nil {
		v := *r.ReplacedBySessionID
		out.ReplacedBySessionID = &v
	}
	return out
}
