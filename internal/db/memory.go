package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of every backend contract.
// It is used by tests and by the server when BACKEND=memory.
type MemoryStore struct {
	mu           sync.Mutex
	collections  map[string]*memCollection
	assets       map[string][]byte
	listeners    map[string]map[int]chan struct{}
	nextListener int
}

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

var (
	_ DocumentStore = (*MemoryStore)(nil)
	_ TreeStore     = memoryTree{}
	_ AssetStore    = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		assets:      make(map[string][]byte),
		listeners:   make(map[string]map[int]chan struct{}),
	}
}

// Backends returns the store wired as every backend.
func (m *MemoryStore) Backends() Backends {
	return Backends{Documents: m, Tree: m.Tree(), Assets: m}
}

// Tree returns the store's key-tree view.
func (m *MemoryStore) Tree() TreeStore { return memoryTree{m} }

// memoryTree serves the TreeStore contract, whose Listen takes a node
// address instead of a collection and filter.
type memoryTree struct{ *MemoryStore }

func (t memoryTree) Listen(ctx context.Context, baseURL, path string, emit EmitFunc) {
	t.listen(ctx, treeKey(baseURL, path), nil, emit)
}

func cleanPath(p string) string { return strings.Trim(p, "/") }

func treeKey(baseURL, path string) string {
	return "tree:" + strings.TrimRight(baseURL, "/") + "/" + cleanPath(path)
}

func splitDocPath(path string) (string, string, error) {
	p := cleanPath(path)
	i := strings.LastIndex(p, "/")
	if i <= 0 || i == len(p)-1 {
		return "", "", fmt.Errorf("document %q: %w", path, ErrInvalidPath)
	}
	return p[:i], p[i+1:], nil
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Put stores fields under an explicit ID, replacing any previous value.
func (m *MemoryStore) Put(collection, id string, fields map[string]any) {
	m.mu.Lock()
	m.put(cleanPath(collection), id, fields)
	m.mu.Unlock()
}

// PutChild stores a child of a tree node under an explicit key.
func (m *MemoryStore) PutChild(baseURL, path, key string, fields map[string]any) {
	m.mu.Lock()
	m.put(treeKey(baseURL, path), key, fields)
	m.mu.Unlock()
}

// PutAsset stores an asset object.
func (m *MemoryStore) PutAsset(object string, data []byte) {
	m.mu.Lock()
	m.assets[object] = append([]byte(nil), data...)
	m.mu.Unlock()
}

func (m *MemoryStore) put(key, id string, fields map[string]any) {
	c, ok := m.collections[key]
	if !ok {
		c = &memCollection{docs: make(map[string]map[string]any)}
		m.collections[key] = c
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = copyFields(fields)
	m.notify(key)
}

func (m *MemoryStore) remove(key, id string) {
	c, ok := m.collections[key]
	if !ok {
		return
	}
	if _, exists := c.docs[id]; !exists {
		return
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.notify(key)
}

// notify wakes every listener of key. Callers hold m.mu.
func (m *MemoryStore) notify(key string) {
	for _, ch := range m.listeners[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *MemoryStore) snapshots(key string, filter *Filter) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := make([]Snapshot, 0)
	c, ok := m.collections[key]
	if !ok {
		return snaps
	}
	for _, id := range c.order {
		fields := c.docs[id]
		if filter != nil && !matches(fields, filter) {
			continue
		}
		snaps = append(snaps, &MapSnapshot{Key: id, Fields: copyFields(fields)})
	}
	if strings.HasPrefix(key, "tree:") {
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID() < snaps[j].ID() })
	}
	return snaps
}

func (m *MemoryStore) Documents(ctx context.Context, collection string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.snapshots(cleanPath(collection), nil), nil
}

func (m *MemoryStore) Document(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection, id, err := splitDocPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", path, ErrNotFound)
	}
	fields, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", path, ErrNotFound)
	}
	return &MapSnapshot{Key: id, Fields: copyFields(fields)}, nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.Put(collection, id, fields)
	return id, nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.remove(collection, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Listen(ctx context.Context, collection string, filter *Filter, emit EmitFunc) {
	m.listen(ctx, cleanPath(collection), filter, emit)
}

func (m *MemoryStore) Children(ctx context.Context, baseURL, path string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.snapshots(treeKey(baseURL, path), nil), nil
}

func (m *MemoryStore) Push(ctx context.Context, baseURL, path string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuid.Must(uuid.NewV7()).String()
	m.PutChild(baseURL, path, key, fields)
	return key, nil
}

func (m *MemoryStore) Remove(ctx context.Context, baseURL, path, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.remove(treeKey(baseURL, path), key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.assets[object]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", object, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) listen(ctx context.Context, key string, filter *Filter, emit EmitFunc) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	if m.listeners[key] == nil {
		m.listeners[key] = make(map[int]chan struct{})
	}
	m.listeners[key][id] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.listeners[key], id)
		m.mu.Unlock()
	}()

	emit(m.snapshots(key, filter), nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			emit(m.snapshots(key, filter), nil)
		}
	}
}

// ListenerCount reports how many listeners are attached to a collection.
func (m *MemoryStore) ListenerCount(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[cleanPath(collection)])
}

func matches(fields map[string]any, f *Filter) bool {
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	cmp, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case "==":
		return cmp == 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

// compareValues orders two scalars the way Firestore does within one type.
// Values of different types are not comparable.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		switch {
		case !ok:
			return 0, false
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
