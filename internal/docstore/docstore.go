package docstore

import (
	"context"
	"errors"
)

var ErrNoSuchDocument = errors.New("document does not exist")

// Document is a raw store record. Field values keep whatever shape the
// backend returns; readers are expected to normalize them.
type Document struct {
	ID   string
	Data map[string]any
}

const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

// Query selects documents of one collection by a single field condition.
// An empty Field matches the whole collection.
type Query struct {
	Collection string
	Field      string
	Op         string
	Value      any
	OrderBy    string
	Desc       bool
	Limit      int
}

// Tx exposes the read-then-write operations available inside a transaction.
// Reads observe the state committed before the transaction started; writes
// are applied atomically when the transaction function returns nil.
type Tx interface {
	Get(collection, id string) (Document, error)
	GetAll(q Query) ([]Document, error)
	Set(collection, id string, data map[string]any)
	Update(collection, id string, fields map[string]any)
	Delete(collection, id string)
}

// Store is the document store contract the services are written against.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Merge upserts only the given fields, leaving the rest of the document untouched.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// Update fails with ErrNoSuchDocument when the document is absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	GetAll(ctx context.Context, q Query) ([]Document, error)
	NewID() string
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	// Watch emits the full result set of q on every change, starting with the
	// current state. The channel closes when ctx is done.
	Watch(ctx context.Context, q Query) (<-chan []Document, error)
}
