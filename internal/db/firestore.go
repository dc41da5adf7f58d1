package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore on a Cloud Firestore client.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

var _ DocumentStore = (*FirestoreStore)(nil)

// NewFirestoreStore creates a new FirestoreStore. A nil logger disables logging.
func NewFirestoreStore(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger.Named("firestore")}
}

func (s *FirestoreStore) col(path string) (*firestore.CollectionRef, error) {
	ref := s.client.Collection(path)
	if ref == nil {
		return nil, fmt.Errorf("collection %q: %w", path, ErrInvalidPath)
	}
	return ref, nil
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("document %q: %w", path, ErrInvalidPath)
	}
	return ref, nil
}

// Documents reads every document of the collection.
func (s *FirestoreStore) Documents(ctx context.Context, collection string) ([]Snapshot, error) {
	col, err := s.col(collection)
	if err != nil {
		return nil, err
	}

	iter := col.Documents(ctx)
	defer iter.Stop()

	snaps := make([]Snapshot, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate collection %q: %w", collection, err)
		}
		snaps = append(snaps, &firestoreSnapshot{doc: doc})
	}
	return snaps, nil
}

// Document reads a single document. A missing document is reported as ErrNotFound.
func (s *FirestoreStore) Document(ctx context.Context, path string) (Snapshot, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("document %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document %q: %w", path, err)
	}
	return &firestoreSnapshot{doc: snap}, nil
}

// Add creates a new document with an auto-generated ID.
func (s *FirestoreStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	col, err := s.col(collection)
	if err != nil {
		return "", err
	}
	ref, _, err := col.Add(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to add document to %q: %w", collection, err)
	}
	return ref.ID, nil
}

// Delete removes a document. Firestore treats deleting a missing document as success.
func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", path, err)
	}
	return nil
}

// Listen attaches a snapshot listener to the collection and emits the full
// result set every time it changes.
func (s *FirestoreStore) Listen(ctx context.Context, collection string, filter *Filter, emit EmitFunc) {
	col, err := s.col(collection)
	if err != nil {
		emit(nil, err)
		return
	}

	query := col.Query
	if filter != nil {
		query = query.Where(filter.Field, filter.Op, filter.Value)
	}

	iter := query.Snapshots(ctx)
	defer iter.Stop()

	for {
		qs, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return
			}
			s.logger.Warn("Snapshot listener failed", zap.String("collection", collection), zap.Error(err))
			emit(nil, err)
			return
		}
		if qs == nil {
			emit(nil, nil)
			continue
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			emit(nil, fmt.Errorf("failed to read snapshot of %q: %w", collection, err))
			return
		}
		emit(wrapDocuments(docs), nil)
	}
}
