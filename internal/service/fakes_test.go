package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

var errBoom = errors.New("boom")

// fakeDocs is an in-memory DocumentStore.
type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]map[string]*model.Document
	seq  int

	getErr    error
	addErr    error
	setErr    error
	deleteErr error
	listErr   error
	// updateErr, when set, decides per document whether Update fails.
	updateErr func(collection, id string) error

	updates int
}

var _ repository.DocumentStore = (*fakeDocs)(nil)

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]map[string]*model.Document{}}
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeDocs) put(collection, id string, fields map[string]any) {
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]*model.Document{}
	}
	f.seq++
	ts := time.Unix(int64(f.seq), 0).UTC()
	f.docs[collection][id] = &model.Document{
		Collection: collection,
		ID:         id,
		Fields:     copyFields(fields),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func (f *fakeDocs) sorted(collection string) []model.Document {
	out := make([]model.Document, 0, len(f.docs[collection]))
	for _, d := range f.docs[collection] {
		c := *d
		c.Fields = copyFields(d.Fields)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeDocs) GetByField(_ context.Context, collection, field, value string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []model.Document
	for _, d := range f.sorted(collection) {
		if v, ok := d.Fields[field].(string); ok && v == value {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocs) GetByID(_ context.Context, collection, id string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.docs[collection][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *d
	c.Fields = copyFields(d.Fields)
	return &c, nil
}

func (f *fakeDocs) Add(_ context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	id := fmt.Sprintf("%s-%d", collection, f.seq+1)
	f.put(collection, id, fields)
	return id, nil
}

func (f *fakeDocs) Set(_ context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.put(collection, id, fields)
	return nil
}

func (f *fakeDocs) Update(_ context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		if err := f.updateErr(collection, id); err != nil {
			return err
		}
	}
	d, ok := f.docs[collection][id]
	if !ok {
		return errs.ErrNotFound
	}
	for k, v := range fields {
		d.Fields[k] = v
	}
	f.updates++
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs[collection], id)
	return nil
}

func (f *fakeDocs) List(_ context.Context, collection string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.sorted(collection)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// fakeMirror is an in-memory LocalMirror.
type fakeMirror struct {
	mu     sync.Mutex
	users  map[string]model.User
	posts  map[string]model.LocalPost
	order  []string
	habits map[string]model.Habit

	userErr  error
	postErr  error
	habitErr error
}

var _ repository.LocalMirror = (*fakeMirror)(nil)

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		users:  map[string]model.User{},
		posts:  map[string]model.LocalPost{},
		habits: map[string]model.Habit{},
	}
}

func (m *fakeMirror) UpsertUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userErr != nil {
		return m.userErr
	}
	m.users[u.UID] = model.User{UID: u.UID, Name: u.Name, Email: u.Email, Goal: u.Goal}
	return nil
}

func (m *fakeMirror) GetUser(_ context.Context, uid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userErr != nil {
		return nil, m.userErr
	}
	u, ok := m.users[uid]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (m *fakeMirror) UpsertPost(_ context.Context, p model.LocalPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	if _, ok := m.posts[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.posts[p.ID] = p
	return nil
}

func (m *fakeMirror) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	delete(m.posts, id)
	return nil
}

func (m *fakeMirror) list(match func(model.LocalPost) bool) []model.LocalPost {
	out := []model.LocalPost{}
	for _, id := range m.order {
		if p, ok := m.posts[id]; ok && match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *fakeMirror) ListPostsByUID(_ context.Context, uid string) ([]model.LocalPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return nil, m.postErr
	}
	return m.list(func(p model.LocalPost) bool { return p.UID == uid }), nil
}

func (m *fakeMirror) ListPosts(_ context.Context) ([]model.LocalPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return nil, m.postErr
	}
	return m.list(func(model.LocalPost) bool { return true }), nil
}

func (m *fakeMirror) ReplacePostsForUID(_ context.Context, uid string, posts []model.LocalPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	for id, p := range m.posts {
		if p.UID == uid {
			delete(m.posts, id)
		}
	}
	for _, p := range posts {
		if _, ok := m.posts[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.posts[p.ID] = p
	}
	return nil
}

func (m *fakeMirror) GetHabit(_ context.Context, uid string) (*model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.habitErr != nil {
		return nil, m.habitErr
	}
	h, ok := m.habits[uid]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &h, nil
}

func (m *fakeMirror) GetTasks(_ context.Context, uid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.habitErr != nil {
		return nil, m.habitErr
	}
	h, ok := m.habits[uid]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, h.Tasks...), nil
}

func (m *fakeMirror) UpsertHabit(_ context.Context, h model.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.habitErr != nil {
		return m.habitErr
	}
	m.habits[h.UID] = h
	return nil
}

func (m *fakeMirror) MutateHabit(_ context.Context, uid string, fn func(model.Habit) (model.Habit, error)) (model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.habitErr != nil {
		return model.Habit{}, m.habitErr
	}
	cur, ok := m.habits[uid]
	if !ok {
		cur = model.Habit{UID: uid, Tasks: []string{}}
	}
	next, err := fn(cur)
	if err != nil {
		return model.Habit{}, err
	}
	next.UID = uid
	if !ok && next.Empty() {
		return next, nil
	}
	m.habits[uid] = next
	return next, nil
}

// recSink records diverged uids.
type recSink struct {
	mu   sync.Mutex
	uids []string
}

func (r *recSink) Diverged(uid, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uids = append(r.uids, uid)
}

func (r *recSink) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uids...)
}
