// Package sqlite implements the on-device relational mirror of remote records.
//
// The mirror holds three tables (users, posts, habits) in an embedded SQLite
// file. It carries no business logic: rows are written as given and read
// back as stored. The handle is opened once per process and shared by every
// sync adapter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/and161185/habithive/internal/repository"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection used as the local mirror.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the mirror database at path.
//
// The pool is limited to a single connection so statements issued by
// concurrent callers queue instead of failing with SQLITE_BUSY.
// Transactions start IMMEDIATE, which makes read-then-write sequences safe
// against each other.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	params := url.Values{}
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(wal)")
	dsn := "file:" + path + "?" + params.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the mirror tables if they don't exist. Safe to call
// repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		uid TEXT PRIMARY KEY,
		name TEXT,
		email TEXT,
		goal TEXT
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		uid TEXT,
		title TEXT,
		content TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_posts_uid ON posts(uid);

	CREATE TABLE IF NOT EXISTS habits (
		uid TEXT PRIMARY KEY,
		tasks TEXT,  -- JSON array
		completedTasks INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("failed to commit transaction: %w", e)
		}
	}()
	return fn(tx)
}

var _ repository.LocalMirror = (*DB)(nil)
