// Package app wires configuration into repositories and mutation hooks. It
// is shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/api"
	"github.com/example/docsync/internal/cache"
	"github.com/example/docsync/internal/config"
	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/events"
	"github.com/example/docsync/internal/metrics"
	"github.com/example/docsync/internal/models"
)

// MemoryTreeURL stands in for FIREBASE_DATABASE_URL on the memory backend.
const MemoryTreeURL = "memory://tree"

// Descriptors builds the descriptor of every configured model type, keyed
// by the name it is exposed under.
func Descriptors(cfg *config.Config) (map[string]models.Descriptor, error) {
	descs := make(map[string]models.Descriptor)
	add := func(name string, d models.Descriptor) error {
		if _, exists := descs[name]; exists {
			return fmt.Errorf("duplicate name %q", name)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		descs[name] = d
		return nil
	}

	for _, entry := range cfg.Collections {
		name, path := entry, entry
		if strings.Contains(entry, "=") {
			var err error
			if name, path, err = config.ParsePair(entry); err != nil {
				return nil, err
			}
		}
		if err := add(name, models.Descriptor{Kind: models.KindCollection, Collection: path}); err != nil {
			return nil, err
		}
	}
	for _, entry := range cfg.Documents {
		name, path, err := config.ParsePair(entry)
		if err != nil {
			return nil, err
		}
		if err := add(name, models.Descriptor{Kind: models.KindDocument, DocumentPath: path}); err != nil {
			return nil, err
		}
	}

	baseURL := cfg.FirebaseDatabaseURL
	if baseURL == "" && cfg.Backend == config.BackendMemory {
		baseURL = MemoryTreeURL
	}
	for _, entry := range cfg.Trees {
		name, path, err := config.ParsePair(entry)
		if err != nil {
			return nil, err
		}
		if err := add(name, models.Descriptor{Kind: models.KindKeyTree, BaseURL: baseURL, Reference: path}); err != nil {
			return nil, err
		}
	}

	for _, entry := range cfg.Assets {
		name, namespace, err := config.ParsePair(entry)
		if err != nil {
			return nil, err
		}
		d, ok := descs[name]
		if !ok {
			return nil, fmt.Errorf("ASSETS entry %q names an unknown model type", entry)
		}
		d.Asset = &models.AssetConfig{Namespace: namespace}
		descs[name] = d
	}
	return descs, nil
}

// Hooks holds the mutation hooks and fetch observers built from config.
type Hooks struct {
	Mutations []core.MutationHook
	Observers []core.FetchObserver
	closers   []func() error
}

// Options returns repository options attaching every hook.
func (h *Hooks) Options() []core.Option {
	if h == nil {
		return nil
	}
	return []core.Option{core.WithHooks(h.Mutations...), core.WithFetchObservers(h.Observers...)}
}

// Close releases hook connections in reverse order of creation.
func (h *Hooks) Close() error {
	if h == nil {
		return nil
	}
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildHooks creates the prometheus collector (when reg is non-nil), the
// Redis mirror (REDIS_ADDR) and the RabbitMQ publisher (RABBITMQ_URL).
func BuildHooks(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*Hooks, error) {
	h := &Hooks{}

	if reg != nil {
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		h.Mutations = append(h.Mutations, collector)
		h.Observers = append(h.Observers, collector)
	}

	if cfg.RedisAddr != "" {
		mirror, err := cache.NewRedisMirror(ctx, cache.Config{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Mutations = append(h.Mutations, mirror)
		h.closers = append(h.closers, mirror.Close)
	}

	if cfg.RabbitMQURL != "" {
		pub, err := events.NewPublisher(events.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, logger)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Mutations = append(h.Mutations, pub)
		h.closers = append(h.closers, pub.Close)
	}
	return h, nil
}

// BuildRegistry creates one document repository per descriptor.
func BuildRegistry(backends db.Backends, sched core.Scheduler, descs map[string]models.Descriptor, hooks *Hooks, logger *zap.Logger) (*api.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, 0, len(descs))
	for name := range descs {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := api.NewRegistry()
	for _, name := range names {
		opts := append([]core.Option{core.WithDescriptor(descs[name]), core.WithLogger(logger)}, hooks.Options()...)
		repo, err := core.NewRepository[models.Document](backends, sched, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := registry.Register(name, repo); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
