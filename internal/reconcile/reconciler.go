// Package reconcile re-derives local mirror rows from the remote store.
//
// Adapters report uids whose mirror write failed through Diverged. Run drains
// that queue on a timer; ReconcileUID and ReconcileAll can be called directly.
// Failures of one entity are logged and counted, the pass moves on.
package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

// Mirror is the local store as seen by the reconciler.
type Mirror interface {
	repository.LocalMirror
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Report is the outcome of one uid.
type Report struct {
	UID   string
	User  bool // user row refreshed
	Posts int  // posts now mirrored for the uid, -1 if not refreshed
	Habit bool // habit row refreshed
	// Failures counts entities that could not be refreshed.
	Failures int
}

// Config tunes Run.
type Config struct {
	// Interval between passes. Zero means one minute.
	Interval time.Duration
	// Full makes every pass cover all known uids, not only queued ones.
	Full bool
	// UIDs are reconciled on every pass in addition to the queue.
	UIDs []string
}

// Reconciler implements service.DivergenceSink.
type Reconciler struct {
	remote repository.DocumentStore
	local  Mirror
	log    *zap.Logger
	clock  clock.Clock
	cfg    Config

	mu      sync.Mutex
	pending map[string]bool // uid -> habit row refresh forced
}

// New constructs a Reconciler. log and clk may be nil.
func New(remote repository.DocumentStore, local Mirror, log *zap.Logger, clk clock.Clock, cfg Config) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reconciler{
		remote:  remote,
		local:   local,
		log:     log,
		clock:   clk,
		cfg:     cfg,
		pending: map[string]bool{},
	}
}

// Enqueue schedules uid for the next pass.
func (r *Reconciler) Enqueue(uid string) {
	r.queue(target{uid: uid})
}

// Diverged records a missed mirror write to collection. A habit divergence
// lets the next pass overwrite the uid's existing habit row.
func (r *Reconciler) Diverged(uid, collection string) {
	r.queue(target{uid: uid, habit: collection == model.CollectionHabits})
}

// target is a queued uid. habit forces the habit row refresh.
type target struct {
	uid   string
	habit bool
}

func (r *Reconciler) queue(t target) {
	if t.uid == "" {
		return
	}
	r.mu.Lock()
	r.pending[t.uid] = r.pending[t.uid] || t.habit
	r.mu.Unlock()
}

// Pending returns the queued uids, sorted.
func (r *Reconciler) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.pending))
	for uid := range r.pending {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

func (r *Reconciler) drain() []target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]target, 0, len(r.pending))
	for uid, habit := range r.pending {
		out = append(out, target{uid: uid, habit: habit})
	}
	r.pending = map[string]bool{}
	sort.Slice(out, func(i, j int) bool { return out[i].uid < out[j].uid })
	return out
}

// ReconcileUID refreshes the user row and replaces the uid's posts with the
// remote set. The habit row is only created when missing: task deletion is
// local-only, so an existing row is overwritten only after a habit
// divergence was reported through Diverged. The returned error joins every
// entity failure.
func (r *Reconciler) ReconcileUID(ctx context.Context, uid string) (Report, error) {
	return r.reconcileUID(ctx, target{uid: uid})
}

func (r *Reconciler) reconcileUID(ctx context.Context, t target) (Report, error) {
	uid := t.uid
	rep := Report{UID: uid, Posts: -1}
	var failures []error
	fail := func(what string, err error) {
		rep.Failures++
		failures = append(failures, err)
		r.log.Warn("reconcile: entity failed",
			zap.String("uid", uid),
			zap.String("entity", what),
			zap.Error(err),
		)
	}

	if ok, err := r.user(ctx, uid); err != nil {
		fail("user", err)
	} else {
		rep.User = ok
	}

	if n, err := r.posts(ctx, uid); err != nil {
		fail("posts", err)
	} else {
		rep.Posts = n
	}

	if ok, err := r.habit(ctx, uid, t.habit); err != nil {
		fail("habit", err)
	} else {
		rep.Habit = ok
	}

	r.log.Debug("reconciled",
		zap.String("uid", uid),
		zap.Bool("user", rep.User),
		zap.Int("posts", rep.Posts),
		zap.Bool("habit", rep.Habit),
		zap.Int("failures", rep.Failures),
	)
	return rep, errors.Join(failures...)
}

func (r *Reconciler) user(ctx context.Context, uid string) (bool, error) {
	docs, err := r.remote.GetByField(ctx, model.CollectionUsers, "uid", uid)
	if err != nil {
		return false, errs.Remote("get user", err)
	}
	if len(docs) == 0 {
		return false, nil
	}
	u, err := model.UserFromDoc(docs[0])
	if err != nil {
		return false, errs.Remote("decode user", err)
	}
	if err := r.local.UpsertUser(ctx, u); err != nil {
		return false, errs.Local("upsert user", err)
	}
	return true, nil
}

func (r *Reconciler) posts(ctx context.Context, uid string) (int, error) {
	docs, err := r.remote.GetByField(ctx, model.CollectionPosts, "uid", uid)
	if err != nil {
		return 0, errs.Remote("get posts", err)
	}
	rows := make([]model.LocalPost, 0, len(docs))
	for _, d := range docs {
		p, err := model.PostFromDoc(d)
		if err != nil {
			return 0, errs.Remote("decode post", err)
		}
		rows = append(rows, p.Local())
	}
	if err := r.local.ReplacePostsForUID(ctx, uid, rows); err != nil {
		return 0, errs.Local("replace posts", err)
	}
	return len(rows), nil
}

func (r *Reconciler) habit(ctx context.Context, uid string, force bool) (bool, error) {
	if !force {
		_, err := r.local.GetHabit(ctx, uid)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return false, errs.Local("get habit", err)
		}
	}
	docs, err := r.remote.GetByField(ctx, model.CollectionHabits, "uid", uid)
	if err != nil {
		return false, errs.Remote("get habit", err)
	}
	if len(docs) == 0 {
		return false, nil
	}
	h, err := model.HabitFromDoc(docs[0])
	if err != nil {
		return false, errs.Remote("decode habit", err)
	}
	h.UID = uid
	if err := r.local.UpsertHabit(ctx, h); err != nil {
		return false, errs.Local("upsert habit", err)
	}
	return true, nil
}

// Flush reconciles every queued uid. A uid that still fails is queued again.
func (r *Reconciler) Flush(ctx context.Context) []Report {
	return r.reconcile(ctx, r.drain())
}

func (r *Reconciler) reconcile(ctx context.Context, targets []target) []Report {
	reps := make([]Report, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			r.queue(t)
			continue
		}
		rep, err := r.reconcileUID(ctx, t)
		if err != nil {
			r.queue(t)
		}
		reps = append(reps, rep)
	}
	return reps
}

// ReconcileAll covers every uid in the remote users collection plus every
// uid that only the mirror knows.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Report, error) {
	seen := map[string]bool{}
	add := func(uid string, habit bool) { seen[uid] = seen[uid] || habit }
	docs, err := r.remote.List(ctx, model.CollectionUsers)
	if err != nil {
		return nil, errs.Remote("list users", err)
	}
	for _, d := range docs {
		u, err := model.UserFromDoc(d)
		if err != nil || u.UID == "" {
			r.log.Warn("reconcile: skipping user document", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		add(u.UID, false)
	}
	local, err := r.local.ListUserIDs(ctx)
	if err != nil {
		r.log.Warn("reconcile: list local users failed", zap.Error(err))
	}
	for _, uid := range local {
		add(uid, false)
	}
	for _, t := range r.drain() {
		add(t.uid, t.habit)
	}

	targets := make([]target, 0, len(seen))
	for uid, habit := range seen {
		targets = append(targets, target{uid: uid, habit: habit})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].uid < targets[j].uid })
	return r.reconcile(ctx, targets), nil
}

// Run reconciles on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info("reconciler started", zap.Duration("interval", r.cfg.Interval), zap.Bool("full", r.cfg.Full))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return ctx.Err()
		case <-r.clock.After(r.cfg.Interval):
		}

		if r.cfg.Full {
			if _, err := r.ReconcileAll(ctx); err != nil {
				r.log.Warn("reconcile: full pass failed", zap.Error(err))
			}
			continue
		}
		for _, uid := range r.cfg.UIDs {
			r.Enqueue(uid)
		}
		if reps := r.Flush(ctx); len(reps) > 0 {
			r.log.Info("reconcile pass", zap.Int("uids", len(reps)))
		}
	}
}
