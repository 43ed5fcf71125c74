package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
)

func seedUser(t *testing.T, docs *fakeDocs, u model.User) {
	t.Helper()
	fields, err := model.Fields(u)
	require.NoError(t, err)
	require.NoError(t, docs.Set(context.Background(), model.CollectionUsers, u.UID, fields))
}

func TestUserSync_SaveThenFetchLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs, mirror := newFakeDocs(), newFakeMirror()
	s := NewUserSync(docs, mirror, nil, nil)

	seedUser(t, docs, model.User{UID: "u1", Name: "Ann", Email: "a@x", Goal: model.GoalHealth})

	u := model.User{UID: "u1", Name: "Ann", Email: "ann@x", Goal: "running", Image: "img://1"}
	res, err := s.Save(ctx, u)
	require.NoError(t, err)
	require.True(t, res.RemoteOK)
	require.True(t, res.LocalOK)
	require.False(t, res.NameChanged)

	got, err := s.FetchLocal(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, model.User{UID: "u1", Name: "Ann", Email: "ann@x", Goal: "running"}, *got)

	remote, err := s.FetchByUID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, u, *remote)
}

func TestUserSync_FetchByUID_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs := newFakeDocs()
	s := NewUserSync(docs, newFakeMirror(), nil, nil)

	_, err := s.FetchByUID(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.False(t, errors.Is(err, errs.ErrRemote))

	_, err = s.FetchByUID(ctx, "")
	require.ErrorIs(t, err, errs.ErrInvalid)

	docs.getErr = errBoom
	_, err = s.FetchByUID(ctx, "u1")
	require.ErrorIs(t, err, errs.ErrRemote)
	require.ErrorIs(t, err, errBoom)
}

func TestUserSync_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs, mirror := newFakeDocs(), newFakeMirror()
	s := NewUserSync(docs, mirror, nil, nil)

	res, err := s.Create(ctx, model.User{UID: "u1", Name: "Ann", Email: "a@x", Goal: model.GoalConfidence})
	require.NoError(t, err)
	require.False(t, res.Diverged())

	d, err := docs.GetByID(ctx, model.CollectionUsers, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ann", d.Fields["name"])

	_, err = s.Create(ctx, model.User{})
	require.ErrorIs(t, err, errs.ErrInvalid)

	docs.setErr = errBoom
	_, err = s.Create(ctx, model.User{UID: "u2"})
	require.ErrorIs(t, err, errs.ErrRemote)
	_, err = mirror.GetUser(ctx, "u2")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserSync_Save_LocalFailureSurfaced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs, mirror := newFakeDocs(), newFakeMirror()
	sink := &recSink{}
	s := NewUserSync(docs, mirror, nil, sink)

	seedUser(t, docs, model.User{UID: "u1", Name: "Ann"})
	mirror.userErr = errBoom

	res, err := s.Save(ctx, model.User{UID: "u1", Name: "Ann", Email: "new@x"})
	require.ErrorIs(t, err, errs.ErrLocal)
	require.ErrorIs(t, err, errBoom)
	require.True(t, res.RemoteOK)
	require.False(t, res.LocalOK)
	require.True(t, res.Diverged())
	require.Equal(t, []string{"u1"}, sink.got())

	// remote half landed
	d, err := docs.GetByID(ctx, model.CollectionUsers, "u1")
	require.NoError(t, err)
	require.Equal(t, "new@x", d.Fields["email"])
}

func TestUserSync_Save_RemoteFailureSkipsMirror(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs, mirror := newFakeDocs(), newFakeMirror()
	s := NewUserSync(docs, mirror, nil, nil)

	seedUser(t, docs, model.User{UID: "u1", Name: "Ann"})
	docs.updateErr = func(string, string) error { return errBoom }

	_, err := s.Save(ctx, model.User{UID: "u1", Name: "Bob"})
	require.ErrorIs(t, err, errs.ErrRemote)
	_, err = mirror.GetUser(ctx, "u1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserSync_Save_RenameFansOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	docs, mirror := newFakeDocs(), newFakeMirror()
	s := NewUserSync(docs, mirror, nil, nil)
	posts := NewPostSync(docs, mirror, nil, nil)

	seedUser(t, docs, model.User{UID: "u1", Name: "Ann"})
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		id, err := posts.Create(ctx, model.Post{UID: "u1", Title: title, UserName: "Ann"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	other, err := posts.Create(ctx, model.Post{UID: "u2", Title: "x", UserName: "Zed"})
	require.NoError(t, err)

	docs.updateErr = func(collection, id string) error {
		if collection == model.CollectionPosts && id == ids[1] {
			return errBoom
		}
		return nil
	}

	res, err := s.Save(ctx, model.User{UID: "u1", Name: "Anna"})
	require.NoError(t, err)
	require.True(t, res.NameChanged)
	require.Equal(t, []string{ids[0], ids[2]}, res.FanOut.Updated)
	require.Equal(t, []string{ids[1]}, res.FanOut.Failed)

	for i, id := range ids {
		p, err := posts.Get(ctx, id)
		require.NoError(t, err)
		if i == 1 {
			require.Equal(t, "Ann", p.UserName)
			continue
		}
		require.Equal(t, "Anna", p.UserName)
	}
	p, err := posts.Get(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "Zed", p.UserName)
}
