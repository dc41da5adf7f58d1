package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/core"
)

// DefaultKeyPrefix namespaces the mirror hashes.
const DefaultKeyPrefix = "docsync"

// hashWriter is the subset of *redis.Client the mirror needs.
type hashWriter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// RedisMirror keeps a Redis hash per collection in step with the records
// created and deleted through the repositories, so other processes can read
// the same view as the local cache. Each hash field is a record id and each
// value the record's fields encoded as JSON.
type RedisMirror struct {
	client hashWriter
	closer func() error
	prefix string
	logger *zap.Logger
}

var _ core.MutationHook = (*RedisMirror)(nil)

// Config contains options for connecting a RedisMirror.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisMirror connects to Redis and verifies the connection with PING.
func NewRedisMirror(ctx context.Context, cfg Config, logger *zap.Logger) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	m := newMirror(rdb, cfg.KeyPrefix, logger)
	m.closer = rdb.Close
	m.logger.Info("Successfully connected to Redis", zap.String("addr", cfg.Address))
	return m, nil
}

func newMirror(client hashWriter, prefix string, logger *zap.Logger) *RedisMirror {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{client: client, prefix: prefix, logger: logger.Named("redis-mirror")}
}

// Key returns the hash key mirroring collection.
func (m *RedisMirror) Key(collection string) string {
	return m.prefix + ":" + collection
}

func (m *RedisMirror) RecordCreated(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if err := m.client.HSet(ctx, m.Key(collection), id, body).Err(); err != nil {
		m.logger.Error("Error mirroring record", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (m *RedisMirror) RecordDeleted(ctx context.Context, collection, id string) error {
	if err := m.client.HDel(ctx, m.Key(collection), id).Err(); err != nil {
		m.logger.Error("Error removing mirrored record", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (m *RedisMirror) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}
