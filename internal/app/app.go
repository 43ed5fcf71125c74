// Package app builds the explicit context object shared by every command:
// store handles, logger, sync adapters and the reconciler. It is constructed
// once at process start; nothing in the tree keeps package-level handles.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/config"
	"github.com/and161185/habithive/internal/limiter"
	"github.com/and161185/habithive/internal/reconcile"
	"github.com/and161185/habithive/internal/repository"
	"github.com/and161185/habithive/internal/repository/postgres"
	"github.com/and161185/habithive/internal/repository/sqlite"
	"github.com/and161185/habithive/internal/service"
	"github.com/and161185/habithive/internal/session"
)

// Deps are the already-opened stores App is wired from.
type Deps struct {
	Remote   repository.DocumentStore
	Accounts repository.AccountRepository
	Limiter  limiter.Limiter
	Local    reconcile.Mirror
}

// App is the process context.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Session *session.Store

	Remote repository.DocumentStore
	Local  reconcile.Mirror

	Reconciler *reconcile.Reconciler
	Users      service.UserSync
	Posts      service.PostSync
	Habits     service.HabitSync
	Auth       service.AuthService

	closers []func() error
}

// Wire builds the adapters over d. Every adapter reports divergence to the
// same reconciler.
func Wire(cfg *config.Config, log *zap.Logger, d Deps) *App {
	if log == nil {
		log = zap.NewNop()
	}
	rec := reconcile.New(d.Remote, d.Local, log.Named("reconcile"), nil, reconcile.Config{
		Interval: cfg.ReconcileInterval,
	})
	users := service.NewUserSync(d.Remote, d.Local, log.Named("users"), rec)
	a := &App{
		Config:     cfg,
		Log:        log,
		Session:    session.NewStore(cfg.SessionDir),
		Remote:     d.Remote,
		Local:      d.Local,
		Reconciler: rec,
		Users:      users,
		Posts:      service.NewPostSync(d.Remote, d.Local, log.Named("posts"), rec),
		Habits:     service.NewHabitSync(d.Remote, d.Local, log.Named("habits"), rec),
	}
	if d.Accounts != nil {
		a.Auth = service.NewAuthService(d.Accounts, users, []byte(cfg.JWTKey), cfg.AccessTTL, d.Limiter, log.Named("auth"))
	}
	return a
}

// pingTimeout bounds the startup reachability check.
const pingTimeout = 3 * time.Second

// Open connects to PostgreSQL and the local mirror and wires the App.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	local, err := sqlite.Open(cfg.LocalDB)
	if err != nil {
		return nil, fmt.Errorf("open local mirror: %w", err)
	}
	if err := local.InitSchema(ctx); err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("init local mirror: %w", err)
	}

	db, pool, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("connect remote store: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	if err := pool.Ping(pingCtx); err != nil {
		log.Warn("remote store unreachable, remote calls will fail", zap.Error(err))
	}
	cancel()

	lim := limiter.NewPG(pool, limiter.Config{
		Window:   cfg.LimiterWindow,
		MaxFails: cfg.LimiterMaxFails,
		BlockFor: cfg.LimiterBlock,
	}, nil)

	a := Wire(cfg, log, Deps{
		Remote:   postgres.NewDocStore(db),
		Accounts: postgres.NewAccountRepo(db),
		Limiter:  lim,
		Local:    local,
	})
	a.closers = append(a.closers,
		local.Close,
		func() error { db.Close(); return nil },
	)
	log.Debug("app opened", zap.String("local_db", local.Path()))
	return a, nil
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Flush reconciles uids whose mirror writes failed during this process.
// Commands call it before exiting so a short-lived CLI still repairs its own
// divergence while the remote store is reachable.
func (a *App) Flush(ctx context.Context) {
	if len(a.Reconciler.Pending()) == 0 {
		return
	}
	for _, rep := range a.Reconciler.Flush(ctx) {
		if rep.Failures > 0 {
			a.Log.Warn("mirror still diverged", zap.String("uid", rep.UID), zap.Int("failures", rep.Failures))
		}
	}
}
