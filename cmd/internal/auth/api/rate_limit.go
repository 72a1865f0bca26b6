package authapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lockoutTier is one step of the progressive identifier lockout, ordered
// from most to least severe.
type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks when at least max failures fall inside the
// trailing window. Retry-after counts from the oldest in-window failure.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	count := 0
	var oldest time.Time
	for _, ts := range failures {
		if ts.Before(cut) {
			continue
		}
		count++
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	if count < max {
		return false, 0
	}
	retry := oldest.Add(window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return true, retry
}

// evaluateProgressiveLockout checks tiers in order and blocks on the first
// tier whose threshold is met and whose lockout, counted from the newest
// failure, has not yet elapsed.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	newest := failures[0]
	for _, ts := range failures[1:] {
		if ts.After(newest) {
			newest = ts
		}
	}
	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := newest.Add(tier.Duration)
		if until.After(now) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func (h *Handler) checkLoginIPThrottle(ctx context.Context, ip net.IP, now time.Time) (bool, time.Duration, error) {
	if ip == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	failures, err := recentLoginFailuresByIP(ctx, h.pool, ip, now.Add(-h.cfg.LoginIPWindow), h.cfg.LoginIPMax)
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
	return blocked, retry, nil
}

func (h *Handler) checkLoginIdentifierThrottle(ctx context.Context, identifier string, now time.Time) (bool, time.Duration, error) {
	if strings.TrimSpace(identifier) == "" {
		return false, 0, nil
	}

	tiers := []lockoutTier{
		{Threshold: h.cfg.LockoutSevereThreshold, Duration: h.cfg.LockoutSevereDuration},
		{Threshold: h.cfg.LockoutLongThreshold, Duration: h.cfg.LockoutLongDuration},
		{Threshold: h.cfg.LockoutShortThreshold, Duration: h.cfg.LockoutShortDuration},
	}

	// Look back far enough to satisfy the most severe tier.
	lookback := h.cfg.LockoutSevereDuration
	limit := h.cfg.LockoutSevereThreshold
	if lookback <= 0 {
		lookback = time.Hour
	}
	if limit <= 0 {
		limit = 50
	}

	failures, err := recentLoginFailuresByIdentifier(ctx, h.pool, identifier, now.Add(-lookback), limit)
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateProgressiveLockout(now, failures, tiers)
	return blocked, retry, nil
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	writeRateLimitedError(w, retryAfter, "rate_limited", "too many attempts")
}

func writeRateLimitedError(w http.ResponseWriter, retryAfter time.Duration, code, msg string) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, code, msg)
}

// ---- audit-backed failure queries ----

func recentLoginFailuresByIP(ctx context.Context, pool *pgxpool.Pool, ip net.IP, since time.Time, limit int) ([]time.Time, error) {
	if pool == nil || ip == nil {
		return nil, nil
	}
	rows, err := pool.Query(ctx, `
		SELECT created_at
		FROM lyceum.audit_log
		WHERE action = 'auth.login.failed'
		  AND ip = $1
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, ip.String(), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTimestamps(rows)
}

func recentLoginFailuresByIdentifier(ctx context.Context, pool *pgxpool.Pool, identifier string, since time.Time, limit int) ([]time.Time, error) {
	if pool == nil || strings.TrimSpace(identifier) == "" {
		return nil, nil
	}
	rows, err := pool.Query(ctx, `
		SELECT created_at
		FROM lyceum.audit_log
		WHERE action = 'auth.login.failed'
		  AND meta->>'identifier' = $1
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, identifier, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTimestamps(rows)
}

func scanTimestamps(rows pgx.Rows) ([]time.Time, error) {
	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}
