package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/reconcile"
)

func newReconcileCmd(c *cli) *cobra.Command {
	var (
		all   bool
		watch bool
		uid   string
	)
	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "sync",
		Short:   "Rebuild local rows from the remote store",
		Long: "Without flags the logged-in user's rows are rebuilt. --all covers every\n" +
			"known user; --watch keeps running and repeats the pass on an interval.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch {
				return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
					rc := reconcile.Config{Interval: c.cfg.ReconcileInterval, Full: all}
					if !all {
						if uid == "" {
							s, err := a.Session.Load()
							if err != nil {
								return err
							}
							uid = s.UID
						}
						rc.UIDs = []string{uid}
					}
					r := reconcile.New(a.Remote, a.Local, c.log.Named("reconcile"), nil, rc)
					err := r.Run(ctx)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			if all {
				return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
					reps, err := a.Reconciler.ReconcileAll(ctx)
					if err != nil {
						return err
					}
					return printReports(cmd, reps)
				})
			}
			if uid != "" {
				return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
					return reconcileOne(ctx, cmd, a, uid)
				})
			}
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				return reconcileOne(ctx, cmd, a, currentUID(ctx))
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "every user known to either store")
	f.BoolVar(&watch, "watch", false, "repeat until interrupted")
	f.StringVar(&uid, "uid", "", "reconcile this uid instead of the logged-in user")
	cmd.MarkFlagsMutuallyExclusive("all", "uid")
	return cmd
}

func reconcileOne(ctx context.Context, cmd *cobra.Command, a *app.App, uid string) error {
	rep, err := a.Reconciler.ReconcileUID(ctx, uid)
	if perr := printReports(cmd, []reconcile.Report{rep}); perr != nil {
		return perr
	}
	return err
}

func printReports(cmd *cobra.Command, reps []reconcile.Report) error {
	out := cmd.OutOrStdout()
	for _, r := range reps {
		posts := fmt.Sprint(r.Posts)
		if r.Posts < 0 {
			posts = "-"
		}
		fmt.Fprintf(out, "%s\tuser=%t\tposts=%s\thabit=%t\tfailures=%d\n", r.UID, r.User, posts, r.Habit, r.Failures)
	}
	return nil
}
