package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/docsync/internal/models"
)

// Add persists rec with a backend-assigned identifier and returns the new
// record's address. Collection types add a document; key-tree types push a
// child node. A copy of rec carrying the identifier is appended to the cache.
func (r *Repository[T, PT]) Add(ctx context.Context, rec *T) (models.Address, error) {
	fields := Fields[T, PT](rec)

	var (
		addr models.Address
		id   string
		err  error
	)
	switch r.desc.Kind {
	case models.KindKeyTree:
		node, ok := ResolveTree(r.desc)
		if !ok {
			return models.Address{}, fmt.Errorf("%w: %q has no tree address", ErrUnsupportedOperation, r.desc.Name())
		}
		id, err = r.tree.Push(ctx, node.BaseURL, node.Path, fields)
		addr = node
	default:
		col, ok := ResolveCollection(r.desc)
		if !ok {
			return models.Address{}, fmt.Errorf("%w: %q has no collection address", ErrUnsupportedOperation, r.desc.Name())
		}
		id, err = r.docs.Add(ctx, col.Path, fields)
		addr = col
	}
	if err != nil {
		return models.Address{}, err
	}

	r.cache.Append(WithRefID[T, PT](rec, id))
	for _, h := range r.hooks {
		if herr := h.RecordCreated(ctx, r.desc.Name(), id, fields); herr != nil {
			r.logger.Warn("Mutation hook failed", zap.String("op", "create"), zap.String("id", id), zap.Error(herr))
		}
	}
	return addr.Child(id), nil
}

// Remove deletes rec from its backend and drops every cached entry carrying
// its identifier. The cache is left untouched when the backend call fails.
func (r *Repository[T, PT]) Remove(ctx context.Context, rec *T) error {
	id := RefID[T, PT](rec)
	if id == "" {
		return ErrNoIdentifier
	}

	var err error
	switch r.desc.Kind {
	case models.KindKeyTree:
		node, ok := ResolveTree(r.desc)
		if !ok {
			return fmt.Errorf("%w: %q has no tree address", ErrUnsupportedOperation, r.desc.Name())
		}
		err = r.tree.Remove(ctx, node.BaseURL, node.Path, id)
	default:
		addr, ok := DocumentAddress(r.desc, id)
		if !ok {
			return fmt.Errorf("%w: %q has no collection address", ErrUnsupportedOperation, r.desc.Name())
		}
		err = r.docs.Delete(ctx, addr.Path)
	}
	if err != nil {
		return err
	}

	removed := r.cache.RemoveID(id)
	r.logger.Debug("Record deleted", zap.String("id", id), zap.Int("cacheEntries", removed))
	for _, h := range r.hooks {
		if herr := h.RecordDeleted(ctx, r.desc.Name(), id); herr != nil {
			r.logger.Warn("Mutation hook failed", zap.String("op", "delete"), zap.String("id", id), zap.Error(herr))
		}
	}
	return nil
}

// Create is the callback form of Add. A type that cannot be addressed for
// creation is a silent no-op; neither callback fires.
func (r *Repository[T, PT]) Create(ctx context.Context, rec *T, onSuccess func(models.Address), onFailure func(error)) {
	r.sched.Background(func() {
		addr, err := r.Add(ctx, rec)
		if errors.Is(err, ErrUnsupportedOperation) {
			r.logger.Info("Create skipped", zap.Error(err))
			return
		}
		if err != nil {
			r.failure(onFailure, err)
			return
		}
		if onSuccess != nil {
			r.sched.Foreground(func() { onSuccess(addr) })
		}
	})
}

// Delete is the callback form of Remove. A record without an identifier, or
// a type without a resolvable address, is a silent no-op.
func (r *Repository[T, PT]) Delete(ctx context.Context, rec *T, onSuccess func(), onFailure func(error)) {
	r.sched.Background(func() {
		err := r.Remove(ctx, rec)
		if errors.Is(err, ErrUnsupportedOperation) || errors.Is(err, ErrNoIdentifier) {
			r.logger.Info("Delete skipped", zap.Error(err))
			return
		}
		if err != nil {
			r.failure(onFailure, err)
			return
		}
		if onSuccess != nil {
			r.sched.Foreground(onSuccess)
		}
	})
}
