package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/clock"
)

// Querier is the subset of pgxpool.Pool used by PG.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds the lockout policy.
type Config struct {
	// Window is the span after which an old failure streak starts over.
	Window time.Duration
	// MaxFails failures inside Window trigger a lockout.
	MaxFails int
	// BlockFor is the lockout length.
	BlockFor time.Duration
}

// PG keeps limiter state in the auth_limiter table.
type PG struct {
	q     Querier
	cfg   Config
	clock clock.Clock
}

// NewPG constructs a PostgreSQL-backed limiter. A nil clk means wall clock.
func NewPG(q Querier, cfg Config, clk clock.Clock) *PG {
	if clk == nil {
		clk = clock.WallClock
	}
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = 5
	}
	return &PG{q: q, cfg: cfg, clock: clk}
}

// Allow checks blocked_until for (email, device).
func (l *PG) Allow(ctx context.Context, email string, deviceHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE email=$1 AND device_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, email, deviceHash).Scan(&blockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("limiter allow: %w", err)
	}
	if wait := blockedUntil.Sub(l.clock.Now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Success resets the counter for (email, device).
func (l *PG) Success(ctx context.Context, email string, deviceHash []byte) error {
	const q = `
INSERT INTO auth_limiter (email, device_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', $3)
ON CONFLICT (email, device_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=EXCLUDED.updated_at`
	if _, err := l.q.Exec(ctx, q, email, deviceHash, l.clock.Now()); err != nil {
		return fmt.Errorf("limiter success: %w", err)
	}
	return nil
}

// Failure bumps the counter, restarting it if the last failure is older than
// the window, and blocks once MaxFails is reached.
func (l *PG) Failure(ctx context.Context, email string, deviceHash []byte) (bool, time.Duration, error) {
	now := l.clock.Now()

	const q = `
INSERT INTO auth_limiter (email, device_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (email, device_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - auth_limiter.updated_at > $4::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = EXCLUDED.updated_at
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, email, deviceHash, now, l.cfg.Window).Scan(&fails); err != nil {
		return false, 0, fmt.Errorf("limiter failure: %w", err)
	}
	if fails < l.cfg.MaxFails {
		return false, 0, nil
	}

	const upd = `UPDATE auth_limiter SET blocked_until=$3 WHERE email=$1 AND device_hash=$2`
	if _, err := l.q.Exec(ctx, upd, email, deviceHash, now.Add(l.cfg.BlockFor)); err != nil {
		return false, 0, fmt.Errorf("limiter block: %w", err)
	}
	return true, l.cfg.BlockFor, nil
}
