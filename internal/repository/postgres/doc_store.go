package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// DocStore implements repository.DocumentStore on a single JSONB table.
type DocStore struct{ db *DB }

// NewDocStore constructs a document store.
func NewDocStore(db *DB) *DocStore { return &DocStore{db: db} }

// GetByField returns documents whose top-level field equals value.
func (s *DocStore) GetByField(ctx context.Context, collection, field, value string) ([]model.Document, error) {
	const q = `
SELECT id, fields, created_at, updated_at
FROM documents
WHERE collection=$1 AND fields->>$2 = $3
ORDER BY created_at ASC, id ASC`
	rows, err := s.db.Pool.Query(ctx, q, collection, field, value)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows, collection)
}

// GetByID loads a single document.
func (s *DocStore) GetByID(ctx context.Context, collection, id string) (*model.Document, error) {
	const q = `
SELECT fields, created_at, updated_at
FROM documents WHERE collection=$1 AND id=$2`
	var (
		raw []byte
		doc = model.Document{Collection: collection, ID: id}
	)
	if err := s.db.Pool.QueryRow(ctx, q, collection, id).Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

// Add stores fields under a fresh UUID; created_at is assigned by the server.
func (s *DocStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	const q = `INSERT INTO documents (collection, id, fields) VALUES ($1,$2,$3)`
	if _, err := s.db.Pool.Exec(ctx, q, collection, id.String(), raw); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Set creates or replaces the document with the given id.
func (s *DocStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO documents (collection, id, fields) VALUES ($1,$2,$3)
ON CONFLICT (collection, id)
DO UPDATE SET fields=EXCLUDED.fields, updated_at=now()`
	_, err = s.db.Pool.Exec(ctx, q, collection, id, raw)
	return err
}

// Update merges fields into the stored object (top-level keys only).
func (s *DocStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const q = `
UPDATE documents SET fields = fields || $3::jsonb, updated_at=now()
WHERE collection=$1 AND id=$2`
	tag, err := s.db.Pool.Exec(ctx, q, collection, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a document if it exists.
func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM documents WHERE collection=$1 AND id=$2`
	_, err := s.db.Pool.Exec(ctx, q, collection, id)
	return err
}

// List returns the whole collection, newest first.
func (s *DocStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	const q = `
SELECT id, fields, created_at, updated_at
FROM documents
WHERE collection=$1
ORDER BY created_at DESC, id ASC`
	rows, err := s.db.Pool.Query(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows, collection)
}

func scanDocs(rows pgx.Rows, collection string) ([]model.Document, error) {
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var (
			id       string
			raw      []byte
			cre, upd time.Time
		)
		if err := rows.Scan(&id, &raw, &cre, &upd); err != nil {
			return nil, err
		}
		d := model.Document{Collection: collection, ID: id, CreatedAt: cre, UpdatedAt: upd}
		if err := json.Unmarshal(raw, &d.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
