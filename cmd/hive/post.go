package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/service"
)

// reportSync notes a write that reached the remote store but not the mirror.
func reportSync(w io.Writer, res service.SyncResult) {
	if res.Diverged() {
		fmt.Fprintf(w, "warning: local copy not updated (%v); it will be repaired on the next sync\n", res.LocalErr)
	}
}

// ownPost loads id and checks the caller wrote it.
func ownPost(ctx context.Context, a *app.App, id string) (*model.Post, error) {
	p, err := a.Posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UID != currentUID(ctx) {
		return nil, fmt.Errorf("%w: post %s belongs to another user", errs.ErrUnauthorized, id)
	}
	return p, nil
}

func newPostCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post",
		GroupID: "content",
		Short:   "Community posts",
	}

	var title, content, image string

	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				uid := currentUID(ctx)
				p := model.Post{UID: uid, Title: title, Content: content, Image: image}
				if u, err := a.Users.FetchByUID(ctx, uid); err == nil {
					p.UserName, p.ProfileImage = u.Name, u.Image
				} else {
					c.log.Debug("post create: no profile for display fields")
				}
				id, err := a.Posts.Create(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cf := create.Flags()
	cf.StringVar(&title, "title", "", "post title")
	cf.StringVar(&content, "content", "", "post body")
	cf.StringVar(&image, "image", "", "image URL")
	_ = create.MarkFlagRequired("title")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Posts.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), postView(*p))
			})
		},
	}

	var eTitle, eContent, eImage string
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Change title, content or image of your post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				p, err := ownPost(ctx, a, args[0])
				if err != nil {
					return err
				}
				f := cmd.Flags()
				if f.Changed("title") {
					p.Title = eTitle
				}
				if f.Changed("content") {
					p.Content = eContent
				}
				if f.Changed("image") {
					p.Image = eImage
				}
				res, err := a.Posts.Update(ctx, *p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "post updated")
				reportSync(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	ef := edit.Flags()
	ef.StringVar(&eTitle, "title", "", "post title")
	ef.StringVar(&eContent, "content", "", "post body")
	ef.StringVar(&eImage, "image", "", "image URL")

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete your post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := ownPost(ctx, a, args[0]); err != nil {
					return err
				}
				res, err := a.Posts.Delete(ctx, currentUID(ctx), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "post deleted")
				reportSync(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List your posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				posts, src, err := a.Posts.ListByUID(ctx, currentUID(ctx))
				if err != nil {
					return err
				}
				if src == service.SourceLocal {
					fmt.Fprintln(cmd.ErrOrStderr(), "remote store unavailable or empty, showing local copy")
				}
				return printJSON(cmd.OutOrStdout(), postViews(posts))
			})
		},
	}

	feed := &cobra.Command{
		Use:   "feed",
		Short: "List all posts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUser(cmd, func(ctx context.Context, a *app.App) error {
				posts, err := a.Posts.ListAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), postViews(posts))
			})
		},
	}

	cmd.AddCommand(create, get, edit, rm, mine, feed)
	return cmd
}

type postJSON struct {
	ID string `json:"id"`
	model.Post
}

func postView(p model.Post) postJSON { return postJSON{ID: p.ID, Post: p} }

func postViews(ps []model.Post) []postJSON {
	out := make([]postJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, postView(p))
	}
	return out
}
