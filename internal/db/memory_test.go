package db

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Add(ctx, "users", map[string]any{"name": "ada"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := store.Document(ctx, "users/"+id)
	require.NoError(t, err)
	assert.True(t, snap.Exists())
	assert.Equal(t, id, snap.ID())
	assert.Equal(t, "ada", snap.Data()["name"])

	snaps, err := store.Documents(ctx, "/users/")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	require.NoError(t, store.Delete(ctx, "users/"+id))
	_, err = store.Document(ctx, "users/"+id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, "users/"+id))

	_, err = store.Document(ctx, "users")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryStore_DocumentsEmptyCollectionIsNonNil(t *testing.T) {
	snaps, err := NewMemoryStore().Documents(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestMemoryStore_PreservesInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Put("tasks", "b", map[string]any{"n": 1})
	store.Put("tasks", "a", map[string]any{"n": 2})
	store.Put("tasks", "c", map[string]any{"n": 3})

	snaps, err := store.Documents(context.Background(), "tasks")
	require.NoError(t, err)
	var ids []string
	for _, s := range snaps {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestMemoryStore_ListenFiltersAndFollowsWrites(t *testing.T) {
	store := NewMemoryStore()
	store.Put("tasks", "t1", map[string]any{"status": "open", "priority": 1})
	store.Put("tasks", "t2", map[string]any{"status": "done", "priority": 5})

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []Snapshot, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Listen(ctx, "tasks", &Filter{Field: "status", Op: "==", Value: "open"}, func(b []Snapshot, err error) {
			assert.NoError(t, err)
			batches <- b
		})
	}()

	first := receive(t, batches)
	require.Len(t, first, 1)
	assert.Equal(t, "t1", first[0].ID())

	store.Put("tasks", "t3", map[string]any{"status": "open", "priority": 3})
	second := receive(t, batches)
	assert.Len(t, second, 2)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after cancel")
	}
	assert.Equal(t, 0, store.ListenerCount("tasks"))
}

func TestMemoryStore_Tree(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	const base = "https://demo.firebaseio.com/"

	k1, err := store.Push(ctx, base, "/presence", map[string]any{"online": true})
	require.NoError(t, err)
	k2, err := store.Push(ctx, base, "presence/", map[string]any{"online": false})
	require.NoError(t, err)

	children, err := store.Children(ctx, "https://demo.firebaseio.com", "presence")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, k1, children[0].ID())
	assert.Equal(t, k2, children[1].ID())

	require.NoError(t, store.Remove(ctx, base, "presence", k1))
	children, err = store.Children(ctx, base, "presence")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestMemoryStore_TreeListen(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Snapshot, 4)
	go store.Tree().Listen(ctx, "https://demo.firebaseio.com", "rooms", func(b []Snapshot, err error) {
		require.NoError(t, err)
		batches <- b
	})

	assert.Empty(t, <-batches)
	store.PutChild("https://demo.firebaseio.com/", "/rooms", "r1", map[string]any{"name": "lobby"})
	got := <-batches
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID())

	store.Put("rooms", "doc", map[string]any{"name": "not a tree child"})
	select {
	case b := <-batches:
		t.Fatalf("collection write woke the tree listener: %v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_Assets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutAsset("avatars/u1.png", []byte("png"))

	r, err := store.Open(ctx, "avatars/u1.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = store.Open(ctx, "avatars/u2.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatches(t *testing.T) {
	now := time.Now()
	fields := map[string]any{"status": "open", "priority": int64(3), "score": 2.5, "done": false, "at": now}

	tests := []struct {
		filter Filter
		want   bool
	}{
		{Filter{"status", "==", "open"}, true},
		{Filter{"status", "==", "closed"}, false},
		{Filter{"priority", "<", 4}, true},
		{Filter{"priority", "<=", 3.0}, true},
		{Filter{"priority", ">", 3}, false},
		{Filter{"score", ">=", 2.5}, true},
		{Filter{"done", "==", false}, true},
		{Filter{"at", "<", now.Add(time.Minute)}, true},
		{Filter{"status", "<", 4}, false},
		{Filter{"missing", "==", "x"}, false},
		{Filter{"status", "array-contains", "open"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matches(fields, &tt.filter), "%s %s %v", tt.filter.Field, tt.filter.Op, tt.filter.Value)
	}
}

func receive(t *testing.T, ch <-chan []Snapshot) []Snapshot {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}
