package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

type task struct {
	ID       string `firestore:"-"`
	Title    string `firestore:"title"`
	Status   string `firestore:"status"`
	Priority int    `firestore:"priority"`
}

func (t *task) Descriptor() models.Descriptor {
	return models.Descriptor{
		Kind:       models.KindCollection,
		Collection: "tasks",
		Asset:      &models.AssetConfig{Namespace: "covers", Placeholder: "placeholder.png"},
	}
}

func (t *task) RefID() string      { return t.ID }
func (t *task) SetRefID(id string) { t.ID = id }

func (t *task) FromSnapshot(snap db.Snapshot) {
	_ = snap.DataTo(t)
}

func (t *task) Fields() map[string]any {
	return map[string]any{"title": t.Title, "status": t.Status, "priority": t.Priority}
}

// manualScheduler runs background work inline and queues foreground work
// until drain is called, so tests can observe the queue hop.
type manualScheduler struct {
	mu           sync.Mutex
	inBackground bool
	backgrounds  int
	foreground   []func()
}

func (s *manualScheduler) Background(fn func()) {
	s.mu.Lock()
	s.inBackground = true
	s.backgrounds++
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.inBackground = false
	s.mu.Unlock()
}

func (s *manualScheduler) Foreground(fn func()) {
	s.mu.Lock()
	s.foreground = append(s.foreground, fn)
	s.mu.Unlock()
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.foreground)
}

func (s *manualScheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.foreground) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.foreground[0]
		s.foreground = s.foreground[1:]
		s.mu.Unlock()
		fn()
	}
}

type emission struct {
	batch []db.Snapshot
	err   error
}

// scriptedStore wraps MemoryStore with injectable failures and a fixed
// listener script.
type scriptedStore struct {
	*db.MemoryStore
	documentsErr error
	deleteErr    error
	script       []emission
}

func (s *scriptedStore) Documents(ctx context.Context, collection string) ([]db.Snapshot, error) {
	if s.documentsErr != nil {
		return nil, s.documentsErr
	}
	return s.MemoryStore.Documents(ctx, collection)
}

func (s *scriptedStore) Delete(ctx context.Context, path string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, path)
}

func (s *scriptedStore) Listen(ctx context.Context, collection string, filter *db.Filter, emit db.EmitFunc) {
	if s.script == nil {
		s.MemoryStore.Listen(ctx, collection, filter, emit)
		return
	}
	for _, e := range s.script {
		if ctx.Err() != nil {
			return
		}
		emit(e.batch, e.err)
	}
	<-ctx.Done()
}

type recordingHook struct {
	mu      sync.Mutex
	created []string
	deleted []string
	err     error
}

func (h *recordingHook) RecordCreated(_ context.Context, collection, id string, _ map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, collection+"/"+id)
	return h.err
}

func (h *recordingHook) RecordDeleted(_ context.Context, collection, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, collection+"/"+id)
	return h.err
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []error
}

func (o *recordingObserver) FetchCompleted(_ string, _ int, err error) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, err)
	o.mu.Unlock()
}

func newTaskRepo(t *testing.T, backends db.Backends, sched Scheduler, opts ...Option) *Repository[task, *task] {
	t.Helper()
	repo, err := NewRepository[task](backends, sched, opts...)
	require.NoError(t, err)
	return repo
}

func nextBatch[T any](t *testing.T, s *Stream[T]) []*T {
	t.Helper()
	select {
	case batch, ok := <-s.Events():
		require.True(t, ok, "stream closed early: %v", s.Err())
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func waitClosed[T any](t *testing.T, s *Stream[T]) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to terminate")
	}
}
