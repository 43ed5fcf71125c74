package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/config"
	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/logging"
	"github.com/and161185/habithive/internal/session"
)

type opener func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.App, error)

// cli carries state shared by every command.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
	open    opener
}

func newRootCmd(c *cli) *cobra.Command {
	c.v = config.New()

	root := &cobra.Command{
		Use:           "hive",
		Short:         "HabitHive client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.v, c.cfgFile, session.DefaultDir())
			if err != nil {
				return err
			}
			log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default hive.yaml)")
	pf.String("dsn", "", "PostgreSQL DSN of the remote store")
	pf.String("local-db", "", "local mirror database file")
	pf.String("session-dir", "", "directory holding session.json")
	pf.String("log-level", "", "debug|info|warn|error")
	pf.String("log-file", "", "also log to this file (rotated)")
	for key, flag := range map[string]string{
		"dsn":         "dsn",
		"local_db":    "local-db",
		"session_dir": "session-dir",
		"log_level":   "log-level",
		"log_file":    "log-file",
	} {
		_ = c.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "content", Title: "Content:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)
	root.AddCommand(
		newMigrateCmd(c),
		newRegisterCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newProfileCmd(c),
		newPostCmd(c),
		newHabitCmd(c),
		newReconcileCmd(c),
		newVersionCmd(),
	)
	return root
}

// withApp opens the stores, runs fn and repairs any divergence fn caused
// before closing.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := c.open(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		a.Flush(ctx)
		if cerr := a.Close(); cerr != nil {
			c.log.Warn("close stores", zap.Error(cerr))
		}
	}()
	return fn(ctx, a)
}

// withUser is withApp for commands that need a logged-in caller. The uid is
// placed in the context; see currentUID.
func (c *cli) withUser(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
		s, err := a.Session.Load()
		if err != nil {
			return err
		}
		if a.Auth != nil {
			uid, err := a.Auth.Verify(s.AccessToken)
			if err != nil {
				return err
			}
			if uid != s.UID {
				return fmt.Errorf("%w: session does not match token", errs.ErrUnauthorized)
			}
		}
		return fn(session.WithUID(ctx, s.UID), a)
	})
}

func currentUID(ctx context.Context) string {
	uid, _ := session.UIDFromContext(ctx)
	return uid
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hive %s (%s)\n", version, buildDate)
		},
	}
}
