package db

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// BucketAssetStore implements AssetStore on a Cloud Storage bucket, as
// returned by the Firebase Storage client.
type BucketAssetStore struct {
	bucket *storage.BucketHandle
}

var _ AssetStore = (*BucketAssetStore)(nil)

func NewBucketAssetStore(bucket *storage.BucketHandle) *BucketAssetStore {
	return &BucketAssetStore{bucket: bucket}
}

func (s *BucketAssetStore) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("asset %q: %w", object, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open asset %q: %w", object, err)
	}
	return r, nil
}
