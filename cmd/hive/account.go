package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/migrate"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/session"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:     "migrate",
		GroupID: "sync",
		Short:   "Apply remote store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !status {
				if err := migrate.Up(ctx, c.cfg.DSN); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
			}
			v, err := migrate.Version(ctx, c.cfg.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "only print the applied version")
	return cmd
}

func needAuth(a *app.App) error {
	if a.Auth == nil {
		return errors.New("account service unavailable")
	}
	return nil
}

func newRegisterCmd(c *cli) *cobra.Command {
	var email, password, name, goal, image string
	cmd := &cobra.Command{
		Use:     "register",
		GroupID: "account",
		Short:   "Create an account and profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.RequireJWTKey(); err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := needAuth(a); err != nil {
					return err
				}
				uid, err := a.Auth.Register(ctx, email, password, model.User{
					Name:  name,
					Goal:  model.Goal(goal),
					Image: image,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s\nrun 'hive login' to sign in\n", uid)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&goal, "goal", string(model.GoalHealth), "focus area")
	f.StringVar(&image, "image", "", "profile image URL")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password, device string
	cmd := &cobra.Command{
		Use:     "login",
		GroupID: "account",
		Short:   "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.RequireJWTKey(); err != nil {
				return err
			}
			if device == "" {
				device = c.cfg.Device
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := needAuth(a); err != nil {
					return err
				}
				tok, uid, err := a.Auth.Login(ctx, email, password, device)
				if err != nil {
					if errors.Is(err, errs.ErrRateLimited) {
						return fmt.Errorf("%w: too many failed attempts, try later", err)
					}
					return err
				}
				if err := a.Session.Save(session.Session{AccessToken: tok.AccessToken, UID: uid, ExpiresAt: tok.ExpiresAt}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (until %s)\n", uid, tok.ExpiresAt.Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password")
	f.StringVar(&device, "device", "", "device label used for rate limiting")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		GroupID: "account",
		Short:   "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := session.NewStore(c.cfg.SessionDir).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
