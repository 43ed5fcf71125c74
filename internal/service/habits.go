package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/im7mortal/kmutex"
	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/habit"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

// HabitSync defines habit task operations across both stores.
type HabitSync interface {
	// GetTasks reads the mirrored task list; empty when there is no row.
	GetTasks(ctx context.Context, uid string) ([]string, error)
	// Fetch reads the remote habit document; a zero habit when absent.
	Fetch(ctx context.Context, uid string) (model.Habit, error)
	// AddTask appends task remotely (creating the document on first use)
	// and in the mirror.
	AddTask(ctx context.Context, uid, task string) (SyncResult, error)
	// CompleteTask removes task and counts it as completed, remotely and in
	// the mirror. Without a remote habit document nothing is written.
	CompleteTask(ctx context.Context, uid, task string) (SyncResult, error)
	// DeleteTask removes task from the mirror only.
	DeleteTask(ctx context.Context, uid, task string) (model.Habit, error)
}

// HabitSyncImpl serializes mutations per uid within the process. Both
// stores move through habit.Apply.
type HabitSyncImpl struct {
	core
	remote repository.DocumentStore
	local  repository.HabitMirror
	locks  *kmutex.Kmutex
}

// NewHabitSync constructs the habit adapter. log and sink may be nil.
func NewHabitSync(remote repository.DocumentStore, local repository.HabitMirror, log *zap.Logger, sink DivergenceSink) *HabitSyncImpl {
	return &HabitSyncImpl{
		core:   newCore(log, sink),
		remote: remote,
		local:  local,
		locks:  kmutex.New(),
	}
}

func (s *HabitSyncImpl) lock(uid string) func() {
	s.locks.Lock(uid)
	return func() { s.locks.Unlock(uid) }
}

func checkTaskArgs(uid, task string) error {
	if uid == "" {
		return fmt.Errorf("%w: empty uid", errs.ErrInvalid)
	}
	if strings.TrimSpace(task) == "" {
		return fmt.Errorf("%w: empty task", errs.ErrInvalid)
	}
	return nil
}

// GetTasks is a local read.
func (s *HabitSyncImpl) GetTasks(ctx context.Context, uid string) ([]string, error) {
	tasks, err := s.local.GetTasks(ctx, uid)
	if err != nil {
		return nil, errs.Local("get tasks", err)
	}
	return tasks, nil
}

// Fetch is a remote read.
func (s *HabitSyncImpl) Fetch(ctx context.Context, uid string) (model.Habit, error) {
	doc, err := s.remoteDoc(ctx, uid)
	if err != nil {
		return model.Habit{}, err
	}
	if doc == nil {
		return model.Habit{UID: uid, Tasks: []string{}}, nil
	}
	return model.HabitFromDoc(*doc)
}

// remoteDoc returns the first habit document for uid, or nil.
func (s *HabitSyncImpl) remoteDoc(ctx context.Context, uid string) (*model.Document, error) {
	docs, err := s.remote.GetByField(ctx, model.CollectionHabits, "uid", uid)
	if err != nil {
		return nil, errs.Remote("get habit", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// AddTask reads the remote habit, appends task and writes the full list
// back with the counter unchanged, or creates the document with a single
// task. The mirror then applies the same transition to its own row.
func (s *HabitSyncImpl) AddTask(ctx context.Context, uid, task string) (SyncResult, error) {
	if err := checkTaskArgs(uid, task); err != nil {
		return SyncResult{}, err
	}
	defer s.lock(uid)()

	doc, err := s.remoteDoc(ctx, uid)
	if err != nil {
		return SyncResult{}, err
	}
	if doc == nil {
		fields := map[string]any{
			"uid":            uid,
			"tasks":          []string{task},
			"completedTasks": 0,
		}
		if _, err := s.remote.Add(ctx, model.CollectionHabits, fields); err != nil {
			return SyncResult{}, errs.Remote("add habit", err)
		}
	} else if err := s.applyRemote(ctx, *doc, habit.OpAdd, task); err != nil {
		return SyncResult{}, err
	}

	return s.applyLocal(ctx, uid, habit.OpAdd, task), nil
}

// CompleteTask is a no-op when the uid has no remote habit document.
func (s *HabitSyncImpl) CompleteTask(ctx context.Context, uid, task string) (SyncResult, error) {
	if err := checkTaskArgs(uid, task); err != nil {
		return SyncResult{}, err
	}
	defer s.lock(uid)()

	doc, err := s.remoteDoc(ctx, uid)
	if err != nil {
		return SyncResult{}, err
	}
	if doc == nil {
		// nothing to complete; neither store is touched
		return SyncResult{}, nil
	}
	if err := s.applyRemote(ctx, *doc, habit.OpComplete, task); err != nil {
		return SyncResult{}, err
	}
	return s.applyLocal(ctx, uid, habit.OpComplete, task), nil
}

// DeleteTask decrements the counter only if task was in the list.
func (s *HabitSyncImpl) DeleteTask(ctx context.Context, uid, task string) (model.Habit, error) {
	if err := checkTaskArgs(uid, task); err != nil {
		return model.Habit{}, err
	}
	defer s.lock(uid)()

	h, err := s.local.MutateHabit(ctx, uid, func(cur model.Habit) (model.Habit, error) {
		next, _, err := habit.Apply(cur, habit.OpDelete, task)
		return next, err
	})
	if err != nil {
		return model.Habit{}, errs.Local("delete task", err)
	}
	return h, nil
}

func (s *HabitSyncImpl) applyRemote(ctx context.Context, doc model.Document, op habit.Op, task string) error {
	cur, err := model.HabitFromDoc(doc)
	if err != nil {
		return errs.Remote("decode habit", err)
	}
	next, out, err := habit.Apply(cur, op, task)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"tasks":          next.Tasks,
		"completedTasks": next.CompletedTasks,
	}
	if err := s.remote.Update(ctx, model.CollectionHabits, doc.ID, fields); err != nil {
		return errs.Remote("update habit", err)
	}
	s.log.Debug("habit updated",
		zap.String("uid", cur.UID),
		zap.Stringer("op", op),
		zap.Bool("present", out.Present),
		zap.Int("delta", out.Delta),
	)
	return nil
}

// applyLocal mirrors a transition whose remote half already landed.
func (s *HabitSyncImpl) applyLocal(ctx context.Context, uid string, op habit.Op, task string) SyncResult {
	_, err := s.local.MutateHabit(ctx, uid, func(cur model.Habit) (model.Habit, error) {
		next, _, err := habit.Apply(cur, op, task)
		return next, err
	})
	return s.mirrored(uid, model.CollectionHabits, "mirror habit "+op.String(), err)
}
