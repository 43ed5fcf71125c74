package repository

import (
	"context"

	"github.com/and161185/habithive/internal/model"
)

// DocumentStore is the hosted document database holding authoritative
// records, organized as named collections. No operation spans more than one
// document.
type DocumentStore interface {
	// GetByField returns documents whose top-level field equals value, oldest first.
	GetByField(ctx context.Context, collection, field, value string) ([]model.Document, error)
	// GetByID loads a document; errs.ErrNotFound if absent.
	GetByID(ctx context.Context, collection, id string) (*model.Document, error)
	// Add stores a new document under a server-generated id and returns it.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Set creates or fully replaces the document with the given id.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document; errs.ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// List returns every document of a collection, newest first.
	List(ctx context.Context, collection string) ([]model.Document, error)
}
