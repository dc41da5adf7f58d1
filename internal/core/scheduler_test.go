package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcher_RunsTasksInOrder(t *testing.T) {
	d := NewDispatcher(nil)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		d.Background(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	d.Close()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcher_QueuesAreSeparate(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Close()

	release := make(chan struct{})
	d.Background(func() { <-release })

	ran := make(chan struct{})
	d.Foreground(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("foreground task blocked by background queue")
	}
	close(release)
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(zap.New(core))

	var ran bool
	d.Background(func() { panic("boom") })
	d.Background(func() { ran = true })
	d.Close()

	assert.True(t, ran)
	entries := logs.FilterMessage("Task panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].ContextMap()["panic"])
}

func TestDispatcher_CloseDeliversCompletions(t *testing.T) {
	d := NewDispatcher(nil)

	var delivered bool
	d.Background(func() {
		time.Sleep(10 * time.Millisecond)
		d.Foreground(func() { delivered = true })
	})
	d.Close()

	assert.True(t, delivered)
}

func TestDispatcher_DropsTasksAfterClose(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewDispatcher(zap.New(core))
	d.Close()

	d.Background(func() { t.Error("task ran after close") })
	assert.Equal(t, 1, logs.FilterMessage("Task dropped: queue closed").Len())
}

func TestCache(t *testing.T) {
	var c Cache[task, *task]
	c.Append(&task{ID: "a"})
	c.Append(&task{ID: "b"})
	c.Append(&task{ID: "a"})
	c.Append(&task{ID: "c"})

	assert.Equal(t, 2, c.RemoveID("a"))
	assert.Equal(t, 0, c.RemoveID("missing"))
	assert.Equal(t, []string{"b", "c"}, cachedIDs(c.Snapshot()))

	snap := c.Snapshot()
	snap[0] = &task{ID: "mutated"}
	assert.Equal(t, []string{"b", "c"}, cachedIDs(c.Snapshot()))

	c.Replace([]*task{{ID: "z"}})
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"z"}, cachedIDs(c.Snapshot()))
}

func cachedIDs(recs []*task) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}
