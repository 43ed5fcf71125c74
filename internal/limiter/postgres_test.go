package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/juju/clock/testclock"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

const (
	qAllow   = `SELECT blocked_until FROM auth_limiter WHERE email=\$1 AND device_hash=\$2`
	qSuccess = `INSERT INTO auth_limiter .* DO UPDATE SET fail_count=0`
	qFailure = `INSERT INTO auth_limiter .* RETURNING fail_count`
	qBlock   = `UPDATE auth_limiter SET blocked_until=\$3`
)

var (
	now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	dev = DeviceHash("phone")
)

func newLimiter(t *testing.T, cfg Config) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPG(mock, cfg, testclock.NewClock(now)), mock
}

var cfg = Config{Window: 15 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}

func TestAllow_NoRow(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectQuery(qAllow).WithArgs("a@x", dev).WillReturnError(pgx.ErrNoRows)

	ok, wait, err := l.Allow(context.Background(), "a@x", dev)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_Blocked(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectQuery(qAllow).WithArgs("a@x", dev).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(4 * time.Minute)))

	ok, wait, err := l.Allow(context.Background(), "a@x", dev)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 4*time.Minute, wait)
}

func TestAllow_Expired(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectQuery(qAllow).WithArgs("a@x", dev).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Second)))

	ok, _, err := l.Allow(context.Background(), "a@x", dev)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllow_DBError(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	boom := errors.New("db down")
	mock.ExpectQuery(qAllow).WithArgs("a@x", dev).WillReturnError(boom)

	ok, _, err := l.Allow(context.Background(), "a@x", dev)
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}

func TestSuccess(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectExec(qSuccess).WithArgs("a@x", dev, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), "a@x", dev))

	boom := errors.New("exec fail")
	mock.ExpectExec(qSuccess).WithArgs("a@x", dev, now).WillReturnError(boom)
	require.ErrorIs(t, l.Success(context.Background(), "a@x", dev), boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BelowThreshold(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectQuery(qFailure).WithArgs("a@x", dev, now, cfg.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

	blocked, wait, err := l.Failure(context.Background(), "a@x", dev)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	mock.ExpectQuery(qFailure).WithArgs("a@x", dev, now, cfg.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(qBlock).WithArgs("a@x", dev, now.Add(cfg.BlockFor)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	blocked, wait, err := l.Failure(context.Background(), "a@x", dev)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, cfg.BlockFor, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_QueryError(t *testing.T) {
	l, mock := newLimiter(t, cfg)
	boom := errors.New("query error")
	mock.ExpectQuery(qFailure).WithArgs("a@x", dev, now, cfg.Window).WillReturnError(boom)

	_, _, err := l.Failure(context.Background(), "a@x", dev)
	require.ErrorIs(t, err, boom)
}

func TestDeviceHash(t *testing.T) {
	require.Equal(t, DeviceHash("Phone "), DeviceHash("phone"))
	require.NotEqual(t, DeviceHash("phone"), DeviceHash("laptop"))
	require.Len(t, DeviceHash(""), 32)
}

func TestNop(t *testing.T) {
	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), "a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), "a", nil)
	require.NoError(t, err)
	require.False(t, blocked)
}
