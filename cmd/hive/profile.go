package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/model"
)

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		GroupID: "account",
		Short:   "Show or edit your profile",
	}

	var local bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				var (
					u   *model.User
					err error
				)
				if local {
					u, err = a.Users.FetchLocal(ctx, currentUID(ctx))
				} else {
					u, err = a.Users.FetchByUID(ctx, currentUID(ctx))
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	show.Flags().BoolVar(&local, "local", false, "read the local mirror")

	var name, email, goal, image, password string
	edit := &cobra.Command{
		Use:   "edit",
		Short: "Change profile fields; a new name is copied to all your posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				uid := currentUID(ctx)
				u, err := a.Users.FetchByUID(ctx, uid)
				if err != nil {
					return err
				}
				f := cmd.Flags()
				if f.Changed("name") {
					u.Name = name
				}
				if f.Changed("email") {
					u.Email = email
				}
				if f.Changed("goal") {
					u.Goal = model.Goal(goal)
				}
				if f.Changed("image") {
					u.Image = image
				}

				res, err := a.Users.Save(ctx, *u)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "profile saved")
				if res.NameChanged {
					fmt.Fprintf(out, "posts renamed: %d, failed: %d\n", len(res.FanOut.Updated), len(res.FanOut.Failed))
					for _, id := range res.FanOut.Failed {
						fmt.Fprintf(out, "  not updated: %s\n", id)
					}
				}

				if f.Changed("password") {
					if err := needAuth(a); err != nil {
						return err
					}
					if err := a.Auth.ChangePassword(ctx, uid, password); err != nil {
						return err
					}
					fmt.Fprintln(out, "password changed")
				}
				return nil
			})
		},
	}
	ef := edit.Flags()
	ef.StringVar(&name, "name", "", "display name")
	ef.StringVar(&email, "email", "", "contact email")
	ef.StringVar(&goal, "goal", "", "focus area")
	ef.StringVar(&image, "image", "", "profile image URL")
	ef.StringVar(&password, "password", "", "new password")

	cmd.AddCommand(show, edit)
	return cmd
}
