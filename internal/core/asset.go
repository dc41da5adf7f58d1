package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

// AssetRef returns the storage location of rec's asset. Object is empty when
// the type has no asset configuration or rec has no identifier yet.
func (r *Repository[T, PT]) AssetRef(rec *T) models.AssetRef {
	cfg := r.desc.Asset
	if cfg == nil {
		return models.AssetRef{}
	}
	ref := models.AssetRef{Placeholder: cfg.Placeholder}
	id := RefID[T, PT](rec)
	if id == "" {
		return ref
	}
	ext := cfg.Extension
	if ext == "" {
		ext = models.DefaultAssetExtension
	}
	ref.Object = path.Join(cfg.Namespace, id+ext)
	return ref
}

// OpenAsset opens rec's asset for reading. The caller closes the reader.
func (r *Repository[T, PT]) OpenAsset(ctx context.Context, rec *T) (io.ReadCloser, error) {
	if r.assets == nil || r.desc.Asset == nil {
		return nil, fmt.Errorf("%w: %q has no asset storage", ErrUnsupportedOperation, r.desc.Name())
	}
	ref := r.AssetRef(rec)
	if ref.Object == "" {
		return nil, fmt.Errorf("%w: record has no asset", ErrNoData)
	}
	rc, err := r.assets.Open(ctx, ref.Object)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: asset %q: %v", ErrNoData, ref.Object, err)
	}
	return rc, err
}
