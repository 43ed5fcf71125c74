package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
)

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetHabit loads the habit row for uid.
func (db *DB) GetHabit(ctx context.Context, uid string) (*model.Habit, error) {
	h, err := getHabit(ctx, db.conn, uid)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetTasks returns the stored task list; an absent row yields an empty list.
func (db *DB) GetTasks(ctx context.Context, uid string) ([]string, error) {
	h, err := getHabit(ctx, db.conn, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return h.Tasks, nil
}

// UpsertHabit writes the whole row.
func (db *DB) UpsertHabit(ctx context.Context, h model.Habit) error {
	return putHabit(ctx, db.conn, h)
}

// MutateHabit runs read -> fn -> write in one IMMEDIATE transaction. An
// absent row that fn leaves empty is not created.
func (db *DB) MutateHabit(ctx context.Context, uid string, fn func(model.Habit) (model.Habit, error)) (model.Habit, error) {
	var out model.Habit
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := getHabit(ctx, tx, uid)
		absent := errors.Is(err, errs.ErrNotFound)
		switch {
		case absent:
			cur = model.Habit{UID: uid, Tasks: []string{}}
		case err != nil:
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}
		next.UID = uid
		if absent && next.Empty() {
			out = next
			return nil
		}
		if err := putHabit(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func getHabit(ctx context.Context, q queryRower, uid string) (model.Habit, error) {
	var (
		tasksJSON sql.NullString
		completed sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT tasks, completedTasks FROM habits WHERE uid = ?`, uid).
		Scan(&tasksJSON, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Habit{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Habit{}, fmt.Errorf("failed to get habit %s: %w", uid, err)
	}

	h := model.Habit{UID: uid, Tasks: []string{}, CompletedTasks: int(completed.Int64)}
	if tasksJSON.Valid && tasksJSON.String != "" && tasksJSON.String != "null" {
		if err := json.Unmarshal([]byte(tasksJSON.String), &h.Tasks); err != nil {
			return model.Habit{}, fmt.Errorf("failed to unmarshal tasks for %s: %w", uid, err)
		}
	}
	return h, nil
}

func putHabit(ctx context.Context, e execer, h model.Habit) error {
	tasks := h.Tasks
	if tasks == nil {
		tasks = []string{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}
	const q = `INSERT OR REPLACE INTO habits (uid, tasks, completedTasks) VALUES (?, ?, ?)`
	if _, err := e.ExecContext(ctx, q, h.UID, string(tasksJSON), h.CompletedTasks); err != nil {
		return fmt.Errorf("failed to write habit %s: %w", h.UID, err)
	}
	return nil
}
