package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

// MutationHook is notified after a successful create or delete. Hooks run on
// the goroutine that performed the mutation; their errors are logged and
// never reach the caller.
type MutationHook interface {
	RecordCreated(ctx context.Context, collection, id string, fields map[string]any) error
	RecordDeleted(ctx context.Context, collection, id string) error
}

// FetchObserver is told about the outcome of every one-shot read.
type FetchObserver interface {
	FetchCompleted(collection string, records int, err error)
}

type options struct {
	descriptor *models.Descriptor
	logger     *zap.Logger
	hooks      []MutationHook
	observers  []FetchObserver
}

// Option configures a Repository.
type Option func(*options)

// WithDescriptor overrides the descriptor reported by the model type.
func WithDescriptor(d models.Descriptor) Option {
	return func(o *options) { o.descriptor = &d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHooks adds mutation hooks. Nil hooks are skipped.
func WithHooks(hooks ...MutationHook) Option {
	return func(o *options) {
		for _, h := range hooks {
			if h != nil {
				o.hooks = append(o.hooks, h)
			}
		}
	}
}

// WithFetchObservers adds fetch observers. Nil observers are skipped.
func WithFetchObservers(observers ...FetchObserver) Option {
	return func(o *options) {
		for _, fo := range observers {
			if fo != nil {
				o.observers = append(o.observers, fo)
			}
		}
	}
}

// Repository is the retrieval and mutation engine for one model type.
// It is safe for concurrent use.
type Repository[T any, PT Model[T]] struct {
	desc      models.Descriptor
	docs      db.DocumentStore
	tree      db.TreeStore
	assets    db.AssetStore
	sched     Scheduler
	cache     Cache[T, PT]
	hooks     []MutationHook
	observers []FetchObserver
	logger    *zap.Logger
}

// NewRepository validates the type's descriptor and checks that the backend
// it needs is present.
func NewRepository[T any, PT Model[T]](backends db.Backends, sched Scheduler, opts ...Option) (*Repository[T, PT], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	desc := PT(new(T)).Descriptor()
	if o.descriptor != nil {
		desc = *o.descriptor
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("repository %q: scheduler is required", desc.Name())
	}
	switch desc.Kind {
	case models.KindCollection, models.KindDocument:
		if backends.Documents == nil {
			return nil, fmt.Errorf("repository %q: %s kind requires a document store", desc.Name(), desc.Kind)
		}
	case models.KindKeyTree:
		if backends.Tree == nil {
			return nil, fmt.Errorf("repository %q: key-tree kind requires a tree store", desc.Name())
		}
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository[T, PT]{
		desc:      desc,
		docs:      backends.Documents,
		tree:      backends.Tree,
		assets:    backends.Assets,
		sched:     sched,
		hooks:     o.hooks,
		observers: o.observers,
		logger:    logger.With(zap.String("model", desc.Name()), zap.Stringer("kind", desc.Kind)),
	}, nil
}

func (r *Repository[T, PT]) Descriptor() models.Descriptor { return r.desc }

// Cached returns a copy of the local cache.
func (r *Repository[T, PT]) Cached() []*T { return r.cache.Snapshot() }

// failure delivers err to onFailure on the foreground queue.
func (r *Repository[T, PT]) failure(onFailure func(error), err error) {
	if onFailure == nil {
		return
	}
	r.sched.Foreground(func() { onFailure(err) })
}
