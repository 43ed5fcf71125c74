package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/and161185/habithive/internal/model"
)

// UpsertPost writes the reduced post projection keyed by id.
func (db *DB) UpsertPost(ctx context.Context, p model.LocalPost) error {
	const q = `INSERT OR REPLACE INTO posts (id, uid, title, content) VALUES (?, ?, ?, ?)`
	if _, err := db.conn.ExecContext(ctx, q, p.ID, p.UID, p.Title, p.Content); err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", p.ID, err)
	}
	return nil
}

// DeletePost removes a post row. Missing rows are not an error.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return nil
}

// ListPostsByUID returns the mirrored posts of one user.
func (db *DB) ListPostsByUID(ctx context.Context, uid string) ([]model.LocalPost, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, uid, title, content FROM posts WHERE uid = ? ORDER BY rowid`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// ListPosts returns every mirrored post.
func (db *DB) ListPosts(ctx context.Context) ([]model.LocalPost, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, uid, title, content FROM posts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// ReplacePostsForUID deletes the uid's rows and inserts posts, in one
// transaction.
func (db *DB) ReplacePostsForUID(ctx context.Context, uid string, posts []model.LocalPost) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE uid = ?`, uid); err != nil {
			return fmt.Errorf("failed to clear posts for %s: %w", uid, err)
		}
		for _, p := range posts {
			const q = `INSERT OR REPLACE INTO posts (id, uid, title, content) VALUES (?, ?, ?, ?)`
			if _, err := tx.ExecContext(ctx, q, p.ID, uid, p.Title, p.Content); err != nil {
				return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func scanPosts(rows *sql.Rows) ([]model.LocalPost, error) {
	posts := []model.LocalPost{}
	for rows.Next() {
		var (
			p                   model.LocalPost
			uid, title, content sql.NullString
		)
		if err := rows.Scan(&p.ID, &uid, &title, &content); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.UID, p.Title, p.Content = uid.String, title.String, content.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}
