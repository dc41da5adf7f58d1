package core

import "sync"

// Cache is the per-type mirror of known records. It is appended to on
// create, pruned on delete and replaced by successful collection fetches.
// Nothing inside the engines reads it.
type Cache[T any, PT Model[T]] struct {
	mu    sync.RWMutex
	items []*T
}

func (c *Cache[T, PT]) Append(rec *T) {
	c.mu.Lock()
	c.items = append(c.items, rec)
	c.mu.Unlock()
}

// RemoveID drops every entry carrying id and returns how many were removed.
func (c *Cache[T, PT]) RemoveID(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, item := range c.items {
		if RefID[T, PT](item) != id {
			kept = append(kept, item)
		}
	}
	removed := len(c.items) - len(kept)
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = nil
	}
	c.items = kept
	return removed
}

func (c *Cache[T, PT]) Replace(recs []*T) {
	c.mu.Lock()
	c.items = append([]*T(nil), recs...)
	c.mu.Unlock()
}

// Snapshot returns a copy of the cached records in order.
func (c *Cache[T, PT]) Snapshot() []*T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*T(nil), c.items...)
}

func (c *Cache[T, PT]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
