package db

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	rtdb "firebase.google.com/go/v4/db"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often RealtimeStore.Listen re-reads a node.
const DefaultPollInterval = 2 * time.Second

// DatabaseFactory opens a Realtime Database client for a database URL.
// (*firebase.App).DatabaseWithURL satisfies it.
type DatabaseFactory func(ctx context.Context, url string) (*rtdb.Client, error)

// RealtimeStore implements TreeStore on the Firebase Realtime Database.
// The Admin SDK has no push listener, so Listen polls the node and emits
// whenever its value changes.
type RealtimeStore struct {
	open         DatabaseFactory
	pollInterval time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	clients map[string]*rtdb.Client
}

var _ TreeStore = (*RealtimeStore)(nil)

// NewRealtimeStore creates a RealtimeStore. Clients are opened lazily per database URL.
func NewRealtimeStore(open DatabaseFactory, pollInterval time.Duration, logger *zap.Logger) *RealtimeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &RealtimeStore{
		open:         open,
		pollInterval: pollInterval,
		logger:       logger.Named("realtime"),
		clients:      make(map[string]*rtdb.Client),
	}
}

func (s *RealtimeStore) ref(ctx context.Context, baseURL, path string) (*rtdb.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[baseURL]
	if !ok {
		var err error
		client, err = s.open(ctx, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open realtime database %q: %w", baseURL, err)
		}
		s.clients[baseURL] = client
		s.logger.Info("Realtime Database client opened", zap.String("url", baseURL))
	}
	return client.NewRef("/" + strings.Trim(path, "/")), nil
}

func (s *RealtimeStore) read(ctx context.Context, baseURL, path string) (map[string]any, error) {
	ref, err := s.ref(ctx, baseURL, path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := ref.Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read node %q: %w", path, err)
	}
	return raw, nil
}

// Children reads the node and returns its children ordered by key. Push keys
// are chronological, so this is insertion order for pushed records.
func (s *RealtimeStore) Children(ctx context.Context, baseURL, path string) ([]Snapshot, error) {
	raw, err := s.read(ctx, baseURL, path)
	if err != nil {
		return nil, err
	}
	return childSnapshots(raw), nil
}

// Push stores fields under a new auto-generated child key.
func (s *RealtimeStore) Push(ctx context.Context, baseURL, path string, fields map[string]any) (string, error) {
	ref, err := s.ref(ctx, baseURL, path)
	if err != nil {
		return "", err
	}
	child, err := ref.Push(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to push child to %q: %w", path, err)
	}
	return child.Key, nil
}

// Remove deletes one child of the node.
func (s *RealtimeStore) Remove(ctx context.Context, baseURL, path, key string) error {
	ref, err := s.ref(ctx, baseURL, path)
	if err != nil {
		return err
	}
	if err := ref.Child(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to remove child %q of %q: %w", key, path, err)
	}
	return nil
}

// Listen emits the node's children once immediately and again after every change.
func (s *RealtimeStore) Listen(ctx context.Context, baseURL, path string, emit EmitFunc) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last map[string]any
	first := true
	for {
		raw, err := s.read(ctx, baseURL, path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(nil, err)
			return
		}
		if first || !reflect.DeepEqual(raw, last) {
			first = false
			last = raw
			emit(childSnapshots(raw), nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func childSnapshots(raw map[string]any) []Snapshot {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snaps := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		snaps = append(snaps, NewMapSnapshot(k, raw[k]))
	}
	return snaps
}
