package repository

import (
	"context"

	"github.com/and161185/habithive/internal/model"
)

// UserMirror is the local copy of user profiles.
type UserMirror interface {
	// UpsertUser inserts or fully replaces the row for u.UID.
	UpsertUser(ctx context.Context, u model.User) error
	// GetUser loads a row; errs.ErrNotFound if absent.
	GetUser(ctx context.Context, uid string) (*model.User, error)
}

// PostMirror is the local copy of posts (reduced projection).
type PostMirror interface {
	UpsertPost(ctx context.Context, p model.LocalPost) error
	DeletePost(ctx context.Context, id string) error
	ListPostsByUID(ctx context.Context, uid string) ([]model.LocalPost, error)
	ListPosts(ctx context.Context) ([]model.LocalPost, error)
	// ReplacePostsForUID makes the uid's rows exactly posts, atomically.
	ReplacePostsForUID(ctx context.Context, uid string, posts []model.LocalPost) error
}

// HabitMirror is the local copy of habit records.
type HabitMirror interface {
	// GetHabit loads a row; errs.ErrNotFound if absent.
	GetHabit(ctx context.Context, uid string) (*model.Habit, error)
	// GetTasks returns the task list, empty if no row exists.
	GetTasks(ctx context.Context, uid string) ([]string, error)
	UpsertHabit(ctx context.Context, h model.Habit) error
	// MutateHabit reads the row (zero habit if absent), applies fn and writes
	// the result back in one transaction. If fn returns an error nothing is
	// written; an absent row that fn leaves empty is not created.
	MutateHabit(ctx context.Context, uid string, fn func(model.Habit) (model.Habit, error)) (model.Habit, error)
}

// LocalMirror bundles the three mirrored tables.
type LocalMirror interface {
	UserMirror
	PostMirror
	HabitMirror
}
