package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/habithive/internal/app"
)

func newHabitCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "habit",
		GroupID: "content",
		Short:   "Habit tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print pending tasks from the local copy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				tasks, err := a.Habits.GetTasks(ctx, currentUID(ctx))
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Print the remote habit record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				h, err := a.Habits.Fetch(ctx, currentUID(ctx))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}

	add := &cobra.Command{
		Use:   "add TASK",
		Short: "Add a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Habits.AddTask(ctx, currentUID(ctx), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %q\n", args[0])
				reportSync(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	done := &cobra.Command{
		Use:   "done TASK",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Habits.CompleteTask(ctx, currentUID(ctx), args[0])
				if err != nil {
					return err
				}
				if !res.RemoteOK {
					fmt.Fprintln(cmd.OutOrStdout(), "no habit record yet, nothing to complete")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "completed %q\n", args[0])
				reportSync(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm TASK",
		Short: "Remove a task from the local copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				h, err := a.Habits.DeleteTask(ctx, currentUID(ctx), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %q, %d pending, %d completed\n", args[0], len(h.Tasks), h.CompletedTasks)
				return nil
			})
		},
	}

	cmd.AddCommand(list, fetch, add, done, rm)
	return cmd
}
