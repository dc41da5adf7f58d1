package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

// Get performs a one-shot read of every record of the type.
//
// An empty result is ErrNoData, not an empty slice. Transport errors are
// returned as reported by the backend. A successful collection read replaces
// the local cache.
func (r *Repository[T, PT]) Get(ctx context.Context) ([]*T, error) {
	var (
		recs []*T
		err  error
	)
	switch r.desc.Kind {
	case models.KindCollection:
		recs, err = r.getCollection(ctx)
	case models.KindDocument:
		recs, err = r.getDocument(ctx)
	case models.KindKeyTree:
		recs, err = r.getTree(ctx)
	default:
		err = fmt.Errorf("%w: kind %s", ErrUnsupportedOperation, r.desc.Kind)
	}

	for _, o := range r.observers {
		o.FetchCompleted(r.desc.Name(), len(recs), err)
	}
	if err != nil {
		r.logger.Debug("Fetch failed", zap.Error(err))
		return nil, err
	}
	return recs, nil
}

// Fetch is the callback form of Get. The read runs on the background queue
// and exactly one of onSuccess or onFailure is invoked on the foreground queue.
func (r *Repository[T, PT]) Fetch(ctx context.Context, onSuccess func([]*T), onFailure func(error)) {
	r.sched.Background(func() {
		recs, err := r.Get(ctx)
		if err != nil {
			r.failure(onFailure, err)
			return
		}
		if onSuccess != nil {
			r.sched.Foreground(func() { onSuccess(recs) })
		}
	})
}

func (r *Repository[T, PT]) getCollection(ctx context.Context) ([]*T, error) {
	addr, ok := ResolveCollection(r.desc)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no collection address", ErrUnsupportedOperation, r.desc.Name())
	}
	snaps, err := r.docs.Documents(ctx, addr.Path)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: collection %q is empty", ErrNoData, addr.Path)
	}
	recs := mapSnapshots[T, PT](snaps)
	r.cache.Replace(recs)
	return recs, nil
}

func (r *Repository[T, PT]) getDocument(ctx context.Context) ([]*T, error) {
	addr, ok := ResolveDocument(r.desc)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no document address", ErrUnsupportedOperation, r.desc.Name())
	}
	snap, err := r.docs.Document(ctx, addr.Path)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return nil, err
	}
	if snap == nil || !snap.Exists() {
		return nil, fmt.Errorf("%w: document %q does not exist", ErrNoData, addr.Path)
	}
	return []*T{FromSnapshot[T, PT](snap)}, nil
}

func (r *Repository[T, PT]) getTree(ctx context.Context) ([]*T, error) {
	addr, ok := ResolveTree(r.desc)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no tree address", ErrUnsupportedOperation, r.desc.Name())
	}
	snaps, err := r.tree.Children(ctx, addr.BaseURL, addr.Path)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: node %q has no children", ErrNoData, addr.String())
	}
	return mapSnapshots[T, PT](snaps), nil
}

// Query streams the records matching q. Every result batch of the live
// listener is emitted, including empty ones. A listener error terminates the
// stream with that error; a type without a collection address terminates it
// with ErrInvalidReference.
func (r *Repository[T, PT]) Query(ctx context.Context, q models.Query) *Stream[T] {
	s, sctx := newStream[T](ctx)

	addr, ok := ResolveCollection(r.desc)
	if !ok {
		r.logger.Warn("Failed to retrieve collection, invalid collection reference",
			zap.String("collection", r.desc.Collection))
		s.finish(fmt.Errorf("%w: %q", ErrInvalidReference, r.desc.Collection))
		return s
	}

	filter := Translate(q)
	go r.stream(sctx, s, func(ctx context.Context, emit db.EmitFunc) {
		r.docs.Listen(ctx, addr.Path, filter, emit)
	})
	return s
}

// Subscribe streams every record of the type until cancelled. Collections
// use an unfiltered query; key-tree types stream the node's children.
func (r *Repository[T, PT]) Subscribe(ctx context.Context) *Stream[T] {
	if r.desc.Kind != models.KindKeyTree {
		return r.Query(ctx, models.Query{})
	}

	s, sctx := newStream[T](ctx)
	addr, ok := ResolveTree(r.desc)
	if !ok {
		s.finish(fmt.Errorf("%w: %q has no tree address", ErrUnsupportedOperation, r.desc.Name()))
		return s
	}
	go r.stream(sctx, s, func(ctx context.Context, emit db.EmitFunc) {
		r.tree.Listen(ctx, addr.BaseURL, addr.Path, emit)
	})
	return s
}

// Observe is the streaming-callback form of Subscribe. Each batch is
// delivered to onChange on the foreground queue; a terminal error goes to
// onFailure. The returned function cancels the subscription.
func (r *Repository[T, PT]) Observe(ctx context.Context, onChange func([]*T), onFailure func(error)) (cancel func()) {
	s := r.Subscribe(ctx)
	go func() {
		for batch := range s.Events() {
			batch := batch
			r.sched.Foreground(func() {
				if s.Cancelled() || onChange == nil {
					return
				}
				onChange(batch)
			})
		}
		if err := s.Err(); err != nil {
			r.failure(onFailure, err)
		}
	}()
	return s.Cancel
}

// stream runs listen until the stream's context ends or a terminal error is
// emitted, mapping each batch to records.
func (r *Repository[T, PT]) stream(ctx context.Context, s *Stream[T], listen func(context.Context, db.EmitFunc)) {
	lctx, stop := context.WithCancel(ctx)
	defer stop()

	var terminal error
	listen(lctx, func(batch []db.Snapshot, err error) {
		if terminal != nil {
			r.logger.DPanic("Listener emitted after a terminal error", zap.Error(err))
			return
		}
		if lctx.Err() != nil {
			return
		}
		if batch == nil {
			if err != nil {
				r.logger.Warn("Failed to retrieve documents", zap.Error(err))
				terminal = err
				stop()
				return
			}
			r.logger.Debug("Ignoring empty listener delivery")
			return
		}
		s.emit(lctx, mapSnapshots[T, PT](batch))
	})
	s.finish(terminal)
}
