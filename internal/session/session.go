// Package session keeps the logged-in caller's token on disk and carries the
// authenticated uid through a context.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/habithive/internal/errs"
)

// Session is what login leaves behind.
type Session struct {
	AccessToken string    `json:"access_token"`
	UID         string    `json:"uid"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether s carries an unexpired token.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && s.UID != "" && now.Before(s.ExpiresAt)
}

// Store reads and writes session.json under a directory.
type Store struct {
	dir string
}

// DefaultDir is $XDG_CONFIG_HOME/habithive, or ~/.config/habithive.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "habithive")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "habithive")
}

// NewStore returns a store rooted at dir; empty dir means DefaultDir.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// Path is the session file location.
func (st *Store) Path() string { return filepath.Join(st.dir, "session.json") }

// Save replaces the session file (0600).
func (st *Store) Save(s Session) error {
	if err := os.MkdirAll(st.dir, 0o700); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := st.Path() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, st.Path())
}

// Load returns the stored session. A missing or expired session is
// errs.ErrUnauthorized.
func (st *Store) Load() (Session, error) {
	b, err := os.ReadFile(st.Path())
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, fmt.Errorf("%w: login required", errs.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	if !s.Valid(time.Now()) {
		return Session{}, fmt.Errorf("%w: session expired, login required", errs.ErrUnauthorized)
	}
	return s, nil
}

// Clear removes the session file; a missing file is fine.
func (st *Store) Clear() error {
	if err := os.Remove(st.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type ctxKey string

const uidKey ctxKey = "hive.uid"

// WithUID stores the authenticated uid in ctx.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

// UIDFromContext fetches the uid stored by WithUID.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey).(string)
	return uid, ok && uid != ""
}
