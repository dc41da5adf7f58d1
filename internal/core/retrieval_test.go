package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

func TestNewRepository_Validation(t *testing.T) {
	mem := db.NewMemoryStore()
	sched := &manualScheduler{}

	_, err := NewRepository[task](mem.Backends(), nil)
	assert.Error(t, err)

	_, err = NewRepository[task](db.Backends{Tree: mem.Tree()}, sched)
	assert.ErrorContains(t, err, "requires a document store")

	_, err = NewRepository[task](db.Backends{Documents: mem}, sched,
		WithDescriptor(models.Descriptor{Kind: models.KindKeyTree, BaseURL: "https://demo.firebaseio.com"}))
	assert.ErrorContains(t, err, "requires a tree store")

	_, err = NewRepository[task](mem.Backends(), sched,
		WithDescriptor(models.Descriptor{Collection: "a", DocumentPath: "a/b"}))
	assert.ErrorIs(t, err, models.ErrInvalidDescriptor)

	repo, err := NewRepository[task](mem.Backends(), sched)
	require.NoError(t, err)
	assert.Equal(t, "tasks", repo.Descriptor().Name())
}

func TestGet_EmptyCollectionIsNoData(t *testing.T) {
	repo := newTaskRepo(t, db.NewMemoryStore().Backends(), &manualScheduler{})

	recs, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, recs)
}

func TestGet_MapsRecordsAndReplacesCache(t *testing.T) {
	mem := db.NewMemoryStore()
	mem.Put("tasks", "t1", map[string]any{"title": "write docs", "status": "open", "priority": 2})
	mem.Put("tasks", "t2", map[string]any{"title": "ship", "status": "done", "priority": 1})

	obs := &recordingObserver{}
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{}, WithFetchObservers(obs))
	repo.cache.Append(&task{ID: "stale"})

	recs, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, &task{ID: "t1", Title: "write docs", Status: "open", Priority: 2}, recs[0])
	assert.Equal(t, "t2", recs[1].ID)

	assert.Equal(t, []string{"t1", "t2"}, cachedIDs(repo.Cached()))
	assert.Equal(t, []error{nil}, obs.outcomes)
}

func TestGet_TransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("unavailable")
	store := &scriptedStore{MemoryStore: db.NewMemoryStore(), documentsErr: boom}
	obs := &recordingObserver{}
	repo := newTaskRepo(t, db.Backends{Documents: store}, &manualScheduler{}, WithFetchObservers(obs))
	repo.cache.Append(&task{ID: "kept"})

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"kept"}, cachedIDs(repo.Cached()))
	require.Len(t, obs.outcomes, 1)
	assert.ErrorIs(t, obs.outcomes[0], boom)
}

func TestGet_DocumentKind(t *testing.T) {
	mem := db.NewMemoryStore()
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{},
		WithDescriptor(models.Descriptor{Kind: models.KindDocument, DocumentPath: "settings/global"}))

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	mem.Put("settings", "global", map[string]any{"title": "config"})
	recs, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "global", recs[0].ID)
	assert.Equal(t, "config", recs[0].Title)
	assert.Empty(t, repo.Cached(), "only collection fetches replace the cache")
}

func TestGet_KeyTreeKind(t *testing.T) {
	mem := db.NewMemoryStore()
	desc := models.Descriptor{Kind: models.KindKeyTree, BaseURL: "https://demo.firebaseio.com", Reference: "boards/b1"}
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{}, WithDescriptor(desc))

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	mem.PutChild(desc.BaseURL, desc.Reference, "k2", map[string]any{"title": "second"})
	mem.PutChild(desc.BaseURL, desc.Reference, "k1", map[string]any{"title": "first"})
	recs, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cachedIDs(recs), "children are ordered by key")
}

func TestFetch_DeliversOnForeground(t *testing.T) {
	mem := db.NewMemoryStore()
	mem.Put("tasks", "t1", map[string]any{"title": "a"})
	sched := &manualScheduler{}
	repo := newTaskRepo(t, mem.Backends(), sched)

	var got []*task
	repo.Fetch(context.Background(), func(recs []*task) { got = recs }, func(err error) { t.Errorf("unexpected failure: %v", err) })

	assert.Equal(t, 1, sched.backgrounds)
	assert.Nil(t, got, "completion must not run inline")
	assert.Equal(t, 1, sched.pending())

	sched.drain()
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}

func TestFetch_FailureOnForeground(t *testing.T) {
	sched := &manualScheduler{}
	repo := newTaskRepo(t, db.NewMemoryStore().Backends(), sched)

	var got error
	repo.Fetch(context.Background(), func([]*task) { t.Error("unexpected success") }, func(err error) { got = err })
	assert.Nil(t, got)

	sched.drain()
	assert.ErrorIs(t, got, ErrNoData)
}

func TestQuery_EmitsEmptyBatchThenUpdates(t *testing.T) {
	mem := db.NewMemoryStore()
	mem.Put("tasks", "t1", map[string]any{"title": "a", "status": "done"})
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{})

	s := repo.Query(context.Background(), models.Query{Field: "status", Comparator: models.Equal, Value: "open"})
	defer s.Cancel()

	first := nextBatch(t, s)
	assert.NotNil(t, first)
	assert.Empty(t, first)

	mem.Put("tasks", "t2", map[string]any{"title": "b", "status": "open"})
	second := nextBatch(t, s)
	require.Len(t, second, 1)
	assert.Equal(t, "t2", second[0].ID)
	assert.Equal(t, "open", second[0].Status)
}

func TestQuery_ComparatorFilters(t *testing.T) {
	mem := db.NewMemoryStore()
	for id, p := range map[string]int{"low": 1, "mid": 3, "high": 5} {
		mem.Put("tasks", id, map[string]any{"priority": p})
	}
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{})

	s := repo.Query(context.Background(), models.Query{Field: "priority", Comparator: models.GreaterThanOrEqual, Value: 3})
	defer s.Cancel()

	batch := nextBatch(t, s)
	assert.ElementsMatch(t, []string{"mid", "high"}, cachedIDs(batch))
}

func TestQuery_InvalidReference(t *testing.T) {
	repo := newTaskRepo(t, db.NewMemoryStore().Backends(), &manualScheduler{},
		WithDescriptor(models.Descriptor{Kind: models.KindDocument, DocumentPath: "settings/global"}))

	s := repo.Query(context.Background(), models.Query{})
	waitClosed(t, s)

	_, open := <-s.Events()
	assert.False(t, open)
	assert.ErrorIs(t, s.Err(), ErrInvalidReference)
}

func TestQuery_MalformedDeliveryIgnoredAndErrorTerminates(t *testing.T) {
	boom := errors.New("permission denied")
	store := &scriptedStore{
		MemoryStore: db.NewMemoryStore(),
		script: []emission{
			{batch: nil, err: nil},
			{batch: []db.Snapshot{}, err: nil},
			{batch: nil, err: boom},
			{batch: []db.Snapshot{&db.MapSnapshot{Key: "late", Fields: map[string]any{}}}},
		},
	}
	repo := newTaskRepo(t, db.Backends{Documents: store}, &manualScheduler{})

	s := repo.Query(context.Background(), models.Query{})
	first := nextBatch(t, s)
	assert.Empty(t, first)

	waitClosed(t, s)
	_, open := <-s.Events()
	assert.False(t, open, "no emission after the terminal error")
	assert.ErrorIs(t, s.Err(), boom)
}

func TestQuery_CancelStopsListener(t *testing.T) {
	mem := db.NewMemoryStore()
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{})

	s := repo.Query(context.Background(), models.Query{})
	nextBatch(t, s)
	assert.Equal(t, 1, mem.ListenerCount("tasks"))

	s.Cancel()
	assert.Equal(t, 0, mem.ListenerCount("tasks"))
	assert.NoError(t, s.Err())
	assert.True(t, s.Cancelled())

	mem.Put("tasks", "t1", map[string]any{"title": "after cancel"})
	_, open := <-s.Events()
	assert.False(t, open)
}

func TestQuery_ParentContextEndsStream(t *testing.T) {
	mem := db.NewMemoryStore()
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	s := repo.Query(ctx, models.Query{})
	nextBatch(t, s)

	cancel()
	waitClosed(t, s)
	assert.NoError(t, s.Err())
}

func TestSubscribe_KeyTree(t *testing.T) {
	mem := db.NewMemoryStore()
	desc := models.Descriptor{Kind: models.KindKeyTree, BaseURL: "https://demo.firebaseio.com", Reference: "boards/b1"}
	mem.PutChild(desc.BaseURL, desc.Reference, "k1", map[string]any{"title": "first"})
	repo := newTaskRepo(t, mem.Backends(), &manualScheduler{}, WithDescriptor(desc))

	s := repo.Subscribe(context.Background())
	defer s.Cancel()

	batch := nextBatch(t, s)
	require.Len(t, batch, 1)
	assert.Equal(t, "first", batch[0].Title)

	mem.PutChild(desc.BaseURL, desc.Reference, "k2", map[string]any{"title": "second"})
	assert.Len(t, nextBatch(t, s), 2)
}

func TestObserve_DeliversBatchesAndStops(t *testing.T) {
	mem := db.NewMemoryStore()
	mem.Put("tasks", "t1", map[string]any{"title": "a"})
	d := NewDispatcher(nil)
	defer d.Close()
	repo := newTaskRepo(t, mem.Backends(), d)

	batches := make(chan []*task, 8)
	cancel := repo.Observe(context.Background(), func(recs []*task) { batches <- recs }, func(err error) {
		t.Errorf("unexpected failure: %v", err)
	})

	select {
	case recs := <-batches:
		assert.Equal(t, []string{"t1"}, cachedIDs(recs))
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	cancel()
	assert.Equal(t, 0, mem.ListenerCount("tasks"))
}

func TestObserve_TerminalErrorReachesFailure(t *testing.T) {
	boom := errors.New("listener lost")
	store := &scriptedStore{MemoryStore: db.NewMemoryStore(), script: []emission{{err: boom}}}
	d := NewDispatcher(nil)
	defer d.Close()
	repo := newTaskRepo(t, db.Backends{Documents: store}, d)

	failures := make(chan error, 1)
	repo.Observe(context.Background(), func([]*task) { t.Error("unexpected batch") }, func(err error) { failures <- err })

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("failure not delivered")
	}
}

func TestFromSnapshot_RoundTrip(t *testing.T) {
	rec := &task{Title: "round trip", Status: "open", Priority: 4}

	got := FromSnapshot[task](db.NewMapSnapshot("abc", Fields[task](rec)))
	assert.Equal(t, &task{ID: "abc", Title: "round trip", Status: "open", Priority: 4}, got)

	assert.Equal(t, &task{}, FromSnapshot[task](nil))
	assert.Equal(t, &task{}, FromSnapshot[task](&db.MapSnapshot{Key: "missing"}))
}
