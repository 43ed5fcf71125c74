package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
)

// UpsertUser writes the {uid, name, email, goal} projection. An existing row
// is replaced entirely.
func (db *DB) UpsertUser(ctx context.Context, u model.User) error {
	const q = `INSERT OR REPLACE INTO users (uid, name, email, goal) VALUES (?, ?, ?, ?)`
	if _, err := db.conn.ExecContext(ctx, q, u.UID, u.Name, u.Email, string(u.Goal)); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.UID, err)
	}
	return nil
}

// GetUser loads a mirrored user.
func (db *DB) GetUser(ctx context.Context, uid string) (*model.User, error) {
	const q = `SELECT uid, name, email, goal FROM users WHERE uid = ?`

	var (
		u                 model.User
		name, email, goal sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, q, uid).Scan(&u.UID, &name, &email, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", uid, err)
	}
	u.Name, u.Email, u.Goal = name.String, email.String, model.Goal(goal.String)
	return &u, nil
}

// ListUserIDs returns every uid with a row in any mirrored table.
func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	const q = `SELECT uid FROM users
		UNION SELECT uid FROM posts WHERE uid IS NOT NULL
		UNION SELECT uid FROM habits
		ORDER BY uid`
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}
