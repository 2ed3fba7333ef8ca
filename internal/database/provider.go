// Package database implements trail's Persistence Port: a small document
// store abstraction over named collections, with an embedded tm-db backend
// and a PostgreSQL JSONB backend, plus the typed queries used by the
// batching engine and the registry service.
//
// DOCUMENT MODEL:
// Documents are JSON objects. Queries are equality matches on top-level or
// dotted fields, where a nil value matches null or absent fields. Updates
// are $set style maps whose keys may also be dotted paths, so a single
// nested property can be written without rewriting its siblings.
package database

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no document matches a query.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidField is returned for field paths that are not dotted
	// identifiers.
	ErrInvalidField = errors.New("invalid field path")
)

// Query selects documents by field equality.
type Query map[string]any

// Update sets fields, addressed by dotted path, on a document.
type Update map[string]any

// SortField orders Find results by one field.
type SortField struct {
	Field      string
	Descending bool
}

// FindOptions pages and orders Find results. Limit 0 means no limit.
type FindOptions struct {
	Skip  int
	Limit int
	Sort  []SortField
}

// Index declares an index over one or more fields of a collection.
type Index struct {
	Fields []string `json:"fields"`
	Unique bool     `json:"unique"`
}

// Provider is a document store with collection semantics.
type Provider interface {
	// Init prepares the backend (schema, metadata) before first use.
	Init(ctx context.Context) error

	// CreateCollection declares a collection and its indexes. Calling it
	// again with the same definition is a no-op.
	CreateCollection(ctx context.Context, name string, indexes []Index) error

	// Count returns the number of documents matching query.
	Count(ctx context.Context, collection string, query Query) (int64, error)

	// Find returns matching documents as raw JSON.
	Find(ctx context.Context, collection string, query Query, opts FindOptions) ([]json.RawMessage, error)

	// FindOne returns the first matching document or ErrNotFound.
	FindOne(ctx context.Context, collection string, query Query) (json.RawMessage, error)

	// UpdateOne applies update to the first matching document. With upsert
	// a missing document is created from the query's equality fields plus
	// the update; without it ErrNotFound is returned.
	UpdateOne(ctx context.Context, collection string, query Query, update Update, upsert bool) error

	// Close releases the backend.
	Close() error
}
