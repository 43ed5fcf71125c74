package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

// UserSync defines profile reads and writes across both stores.
type UserSync interface {
	// FetchByUID loads the remote profile. An empty result is ErrNotFound;
	// there is no local fallback.
	FetchByUID(ctx context.Context, uid string) (*model.User, error)
	// FetchLocal loads the mirrored profile row.
	FetchLocal(ctx context.Context, uid string) (*model.User, error)
	// Create writes users/{uid} and mirrors it (registration).
	Create(ctx context.Context, u model.User) (SyncResult, error)
	// Save writes an edited profile, mirrors it and fans a name change out
	// to the user's posts.
	Save(ctx context.Context, u model.User) (SaveResult, error)
}

// FanOut reports the per-post outcome of a display-name cascade.
type FanOut struct {
	Updated []string
	Failed  []string
}

// SaveResult is the outcome of a profile save.
type SaveResult struct {
	SyncResult
	NameChanged bool
	FanOut      FanOut
}

type UserSyncImpl struct {
	core
	remote repository.DocumentStore
	local  repository.UserMirror
}

// NewUserSync constructs the user adapter. log and sink may be nil.
func NewUserSync(remote repository.DocumentStore, local repository.UserMirror, log *zap.Logger, sink DivergenceSink) *UserSyncImpl {
	return &UserSyncImpl{core: newCore(log, sink), remote: remote, local: local}
}

// FetchByUID queries users by the uid field and returns the first match.
func (s *UserSyncImpl) FetchByUID(ctx context.Context, uid string) (*model.User, error) {
	doc, err := s.fetchDoc(ctx, uid)
	if err != nil {
		return nil, err
	}
	u, err := model.UserFromDoc(*doc)
	if err != nil {
		return nil, errs.Remote("decode user", err)
	}
	return &u, nil
}

func (s *UserSyncImpl) fetchDoc(ctx context.Context, uid string) (*model.Document, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", errs.ErrInvalid)
	}
	docs, err := s.remote.GetByField(ctx, model.CollectionUsers, "uid", uid)
	if err != nil {
		return nil, errs.Remote("get user", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", uid, errs.ErrNotFound)
	}
	return &docs[0], nil
}

// FetchLocal reads the mirror only.
func (s *UserSyncImpl) FetchLocal(ctx context.Context, uid string) (*model.User, error) {
	u, err := s.local.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, errs.Local("get user", err)
	}
	return u, nil
}

// Create stores the profile document under the uid and mirrors it. A mirror
// failure is returned.
func (s *UserSyncImpl) Create(ctx context.Context, u model.User) (SyncResult, error) {
	if u.UID == "" {
		return SyncResult{}, fmt.Errorf("%w: empty uid", errs.ErrInvalid)
	}
	fields, err := model.Fields(u)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.remote.Set(ctx, model.CollectionUsers, u.UID, fields); err != nil {
		return SyncResult{}, errs.Remote("create user", err)
	}
	res := s.mirrored(u.UID, model.CollectionUsers, "mirror user", s.local.UpsertUser(ctx, u))
	return res, res.LocalErr
}

// Save overwrites name, email, goal and image of the remote profile, then
// the local row. If the name changed every post of the user gets the new
// userName, one independent update per post; failures are collected, not
// retried.
func (s *UserSyncImpl) Save(ctx context.Context, u model.User) (SaveResult, error) {
	doc, err := s.fetchDoc(ctx, u.UID)
	if err != nil {
		return SaveResult{}, err
	}
	prev, err := model.UserFromDoc(*doc)
	if err != nil {
		return SaveResult{}, errs.Remote("decode user", err)
	}

	fields := map[string]any{
		"name":  u.Name,
		"email": u.Email,
		"goal":  string(u.Goal),
		"image": u.Image,
	}
	if err := s.remote.Update(ctx, model.CollectionUsers, doc.ID, fields); err != nil {
		return SaveResult{}, errs.Remote("update user", err)
	}

	out := SaveResult{SyncResult: s.mirrored(u.UID, model.CollectionUsers, "mirror user", s.local.UpsertUser(ctx, u))}

	if u.Name != prev.Name {
		out.NameChanged = true
		out.FanOut = s.renamePosts(ctx, u.UID, u.Name)
	}
	return out, out.LocalErr
}

func (s *UserSyncImpl) renamePosts(ctx context.Context, uid, name string) FanOut {
	var fo FanOut
	docs, err := s.remote.GetByField(ctx, model.CollectionPosts, "uid", uid)
	if err != nil {
		s.log.Warn("rename fan-out: list posts failed", zap.String("uid", uid), zap.Error(err))
		return fo
	}
	for _, d := range docs {
		if err := s.remote.Update(ctx, model.CollectionPosts, d.ID, map[string]any{"userName": name}); err != nil {
			s.log.Warn("rename fan-out: post update failed",
				zap.String("uid", uid),
				zap.String("post", d.ID),
				zap.Error(err),
			)
			fo.Failed = append(fo.Failed, d.ID)
			continue
		}
		fo.Updated = append(fo.Updated, d.ID)
	}
	return fo
}
