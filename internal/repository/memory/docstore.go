// Package memory is an in-process DocumentStore. Field maps are stored as
// JSON, so values read back have the same shapes the PostgreSQL store
// returns (numbers as float64, arrays as []any).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/juju/clock"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

type record struct {
	seq       int
	fields    []byte
	createdAt time.Time
	updatedAt time.Time
}

// DocStore keeps documents keyed by (collection, id).
type DocStore struct {
	mu    sync.RWMutex
	clock clock.Clock
	seq   int
	data  map[string]map[string]*record
}

var _ repository.DocumentStore = (*DocStore)(nil)

// NewDocStore returns an empty store. A nil clk means wall clock.
func NewDocStore(clk clock.Clock) *DocStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &DocStore{clock: clk, data: map[string]map[string]*record{}}
}

func (s *DocStore) doc(collection, id string, r *record) (model.Document, error) {
	var f map[string]any
	if err := json.Unmarshal(r.fields, &f); err != nil {
		return model.Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return model.Document{Collection: collection, ID: id, Fields: f, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}, nil
}

// sorted returns the collection oldest first.
func (s *DocStore) sorted(collection string) ([]model.Document, error) {
	type entry struct {
		id string
		r  *record
	}
	var entries []entry
	for id, r := range s.data[collection] {
		entries = append(entries, entry{id, r})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].r.seq < entries[j].r.seq })

	out := make([]model.Document, 0, len(entries))
	for _, e := range entries {
		d, err := s.doc(collection, e.id, e.r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DocStore) GetByField(_ context.Context, collection, field, value string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, err := s.sorted(collection)
	if err != nil {
		return nil, err
	}
	var out []model.Document
	for _, d := range all {
		if v, ok := d.Fields[field].(string); ok && v == value {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DocStore) GetByID(_ context.Context, collection, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[collection][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	d, err := s.doc(collection, id, r)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DocStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, collection, id.String(), fields); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Set keeps the original creation time when replacing.
func (s *DocStore) Set(_ context.Context, collection, id string, fields map[string]any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.data[collection] == nil {
		s.data[collection] = map[string]*record{}
	}
	if r, ok := s.data[collection][id]; ok {
		r.fields, r.updatedAt = b, now
		return nil
	}
	s.seq++
	s.data[collection][id] = &record{seq: s.seq, fields: b, createdAt: now, updatedAt: now}
	return nil
}

// Update merges fields into the top level of the document.
func (s *DocStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[collection][id]
	if !ok {
		return errs.ErrNotFound
	}
	var cur map[string]any
	if err := json.Unmarshal(r.fields, &cur); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		cur[k] = v
	}
	b, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	r.fields, r.updatedAt = b, s.clock.Now()
	return nil
}

func (s *DocStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

// List returns the collection newest first.
func (s *DocStore) List(_ context.Context, collection string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, err := s.sorted(collection)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
