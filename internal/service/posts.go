package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

// PostSync defines community post operations across both stores.
type PostSync interface {
	// Create adds a remote post. Nothing is mirrored until the next edit or
	// reconciliation.
	Create(ctx context.Context, p model.Post) (string, error)
	// Get loads one remote post.
	Get(ctx context.Context, id string) (*model.Post, error)
	// Update overwrites title, content and image remotely, then mirrors the
	// projection. A mirror failure is reported in the result only.
	Update(ctx context.Context, p model.Post) (SyncResult, error)
	// Delete removes the post remotely, then locally. A mirror failure is
	// reported in the result only.
	Delete(ctx context.Context, uid, id string) (SyncResult, error)
	// ListByUID reads remote first and falls back to the mirror when the
	// remote read fails or is empty.
	ListByUID(ctx context.Context, uid string) ([]model.Post, Source, error)
	// ListAll returns the remote feed, newest first. No fallback.
	ListAll(ctx context.Context) ([]model.Post, error)
}

type PostSyncImpl struct {
	core
	remote repository.DocumentStore
	local  repository.PostMirror
}

// NewPostSync constructs the post adapter. log and sink may be nil.
func NewPostSync(remote repository.DocumentStore, local repository.PostMirror, log *zap.Logger, sink DivergenceSink) *PostSyncImpl {
	return &PostSyncImpl{core: newCore(log, sink), remote: remote, local: local}
}

func validatePost(p model.Post) error {
	if p.UID == "" {
		return fmt.Errorf("%w: post without owner", errs.ErrInvalid)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: empty title", errs.ErrInvalid)
	}
	return nil
}

// Create writes a new remote document with the author's display fields.
func (s *PostSyncImpl) Create(ctx context.Context, p model.Post) (string, error) {
	if err := validatePost(p); err != nil {
		return "", err
	}
	fields, err := model.Fields(p)
	if err != nil {
		return "", err
	}
	id, err := s.remote.Add(ctx, model.CollectionPosts, fields)
	if err != nil {
		return "", errs.Remote("add post", err)
	}
	return id, nil
}

// Get loads a post by document id.
func (s *PostSyncImpl) Get(ctx context.Context, id string) (*model.Post, error) {
	doc, err := s.remote.GetByID(ctx, model.CollectionPosts, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("post %s: %w", id, err)
		}
		return nil, errs.Remote("get post", err)
	}
	p, err := model.PostFromDoc(*doc)
	if err != nil {
		return nil, errs.Remote("decode post", err)
	}
	return &p, nil
}

// Update is last-write-wins on title, content and image.
func (s *PostSyncImpl) Update(ctx context.Context, p model.Post) (SyncResult, error) {
	if p.ID == "" {
		return SyncResult{}, fmt.Errorf("%w: post without id", errs.ErrInvalid)
	}
	if err := validatePost(p); err != nil {
		return SyncResult{}, err
	}
	fields := map[string]any{
		"title":   p.Title,
		"content": p.Content,
		"image":   p.Image,
	}
	if err := s.remote.Update(ctx, model.CollectionPosts, p.ID, fields); err != nil {
		return SyncResult{}, errs.Remote("update post", err)
	}
	return s.mirrored(p.UID, model.CollectionPosts, "mirror post", s.local.UpsertPost(ctx, p.Local())), nil
}

// Delete removes the remote document, then the local row.
func (s *PostSyncImpl) Delete(ctx context.Context, uid, id string) (SyncResult, error) {
	if id == "" {
		return SyncResult{}, fmt.Errorf("%w: post without id", errs.ErrInvalid)
	}
	if err := s.remote.Delete(ctx, model.CollectionPosts, id); err != nil {
		return SyncResult{}, errs.Remote("delete post", err)
	}
	return s.mirrored(uid, model.CollectionPosts, "unmirror post", s.local.DeletePost(ctx, id)), nil
}

// ListByUID serves the user's posts from the remote store, or from the
// mirror if the remote query fails or comes back empty. A remote failure is
// never returned; only a failing mirror read is.
func (s *PostSyncImpl) ListByUID(ctx context.Context, uid string) ([]model.Post, Source, error) {
	docs, err := s.remote.GetByField(ctx, model.CollectionPosts, "uid", uid)
	if err == nil && len(docs) > 0 {
		posts, derr := postsFromDocs(docs)
		if derr == nil {
			return posts, SourceRemote, nil
		}
		err = derr
	}
	if err != nil {
		s.log.Info("posts: remote read failed, using mirror", zap.String("uid", uid), zap.Error(err))
	}

	rows, lerr := s.local.ListPostsByUID(ctx, uid)
	if lerr != nil {
		return nil, SourceLocal, errs.Local("list posts", lerr)
	}
	posts := make([]model.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.Post())
	}
	return posts, SourceLocal, nil
}

// ListAll reads the whole remote feed.
func (s *PostSyncImpl) ListAll(ctx context.Context) ([]model.Post, error) {
	docs, err := s.remote.List(ctx, model.CollectionPosts)
	if err != nil {
		return nil, errs.Remote("list posts", err)
	}
	posts, err := postsFromDocs(docs)
	if err != nil {
		return nil, errs.Remote("decode posts", err)
	}
	return posts, nil
}

func postsFromDocs(docs []model.Document) ([]model.Post, error) {
	out := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		p, err := model.PostFromDoc(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
