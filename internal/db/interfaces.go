package db

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a document, tree node or asset does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned for paths the backend cannot address, such
	// as a collection path with an even number of segments.
	ErrInvalidPath = errors.New("invalid backend path")
)

// Filter is a single-field predicate in Firestore operator form
// ("==", "<", "<=", ">", ">=").
type Filter struct {
	Field string
	Op    string
	Value any
}

// EmitFunc receives one result batch from a listener. A non-nil err with a
// nil batch is terminal. A nil batch with a nil err is a malformed delivery
// and must be ignored by the receiver. An empty, non-nil batch is a valid
// result with no records.
type EmitFunc func(batch []Snapshot, err error)

// DocumentStore is the document-collection backend (Cloud Firestore).
type DocumentStore interface {
	// Documents returns every document in the collection at path.
	Documents(ctx context.Context, collection string) ([]Snapshot, error)
	// Document returns the document at path, or ErrNotFound.
	Document(ctx context.Context, path string) (Snapshot, error)
	// Add creates a document with a backend-assigned ID and returns that ID.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Delete removes the document at path. Deleting a missing document succeeds.
	Delete(ctx context.Context, path string) error
	// Listen streams the (optionally filtered) collection until ctx is done
	// or a terminal error has been emitted.
	Listen(ctx context.Context, collection string, filter *Filter, emit EmitFunc)
}

// TreeStore is the key-tree backend (Firebase Realtime Database). Nodes are
// addressed by database URL plus a slash separated path.
type TreeStore interface {
	// Children returns the child entries of the node, ordered by key.
	Children(ctx context.Context, baseURL, path string) ([]Snapshot, error)
	// Push adds a child with an auto-generated key and returns the key.
	Push(ctx context.Context, baseURL, path string, fields map[string]any) (string, error)
	// Remove deletes the child with the given key.
	Remove(ctx context.Context, baseURL, path, key string) error
	// Listen streams the node's children until ctx is done or a terminal
	// error has been emitted.
	Listen(ctx context.Context, baseURL, path string, emit EmitFunc)
}

// AssetStore is the blob namespace holding record assets.
type AssetStore interface {
	// Open returns a reader for the object, or ErrNotFound.
	Open(ctx context.Context, object string) (io.ReadCloser, error)
}

// Backends bundles the stores a repository may use. Any of them may be nil
// when the model types in use do not need it.
type Backends struct {
	Documents DocumentStore
	Tree      TreeStore
	Assets    AssetStore
}
