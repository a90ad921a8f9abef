package kvstore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
)

var errClosed = errors.New("KV store is closed")

// RedisKVStore implements core.KVStore and core.ListStore on Redis or
// an ElastiCache cluster.
type RedisKVStore struct {
	client redis.UniversalClient
	log    zerolog.Logger
	closed atomic.Bool
}

// NewRedisKVStore connects to Redis and verifies the connection with PING.
func NewRedisKVStore(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*RedisKVStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("at least one endpoint is required")
	}

	var client redis.UniversalClient
	if cfg.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Endpoints,
			Password:     cfg.Password,
			MaxRetries:   cfg.MaxRetries,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Endpoints[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	store := NewRedisKVStoreFromClient(client, log)
	store.log.Info().Strs("endpoints", cfg.Endpoints).Bool("cluster", cfg.ClusterMode).Msg("connected to Redis")
	return store, nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client redis.UniversalClient, log zerolog.Logger) *RedisKVStore {
	return &RedisKVStore{client: client, log: logger.Component(log, "redis")}
}

// Get retrieves a value by key from the store.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, errClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug().Str("key", key).Msg("key not found")
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get key %s", key)
	}

	r.log.Debug().Str("key", key).Int("bytes", len(val)).Msg("GET")
	return val, nil
}

// Set stores a key-value pair. A zero ttl means no expiration.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed.Load() {
		return errClosed
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set key %s", key)
	}
	r.log.Debug().Str("key", key).Int("bytes", len(value)).Dur("ttl", ttl).Msg("SET")
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return errClosed
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete key %s", key)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed.Load() {
		return false, errClosed
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to check existence of key %s", key)
	}
	return count > 0, nil
}

// BatchSet stores multiple key-value pairs in one pipeline.
func (r *RedisKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if r.closed.Load() {
		return errClosed
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to batch set keys")
	}
	return nil
}

// Close closes the connection to Redis.
func (r *RedisKVStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.log.Info().Msg("disconnected from Redis")
	return r.client.Close()
}

// ListPush adds a value to the end of a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed.Load() {
		return errClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element from a list (LPOP).
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, errClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // List is empty
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed.Load() {
		return 0, errClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// ValidateRedisConfig checks connection settings shared by the cache and
// the Redis event queue.
func ValidateRedisConfig(cfg config.RedisConfig) error {
	if len(cfg.Endpoints) == 0 {
		return errors.New("at least one endpoint is required for Redis")
	}
	if cfg.DB < 0 || cfg.DB > 15 {
		return errors.Newf("Redis DB must be between 0 and 15, got: %d", cfg.DB)
	}
	if cfg.PoolSize <= 0 {
		return errors.Newf("pool_size must be greater than 0, got: %d", cfg.PoolSize)
	}
	if cfg.MinIdleConns < 0 {
		return errors.Newf("min_idle_conns must be non-negative, got: %d", cfg.MinIdleConns)
	}
	if cfg.MaxRetries < 0 {
		return errors.Newf("max_retries must be non-negative, got: %d", cfg.MaxRetries)
	}
	if cfg.DialTimeout <= 0 {
		return errors.Newf("dial_timeout must be greater than 0, got: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout <= 0 {
		return errors.Newf("read_timeout must be greater than 0, got: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return errors.Newf("write_timeout must be greater than 0, got: %v", cfg.WriteTimeout)
	}
	return nil
}

type redisFactory struct{}

func (redisFactory) Type() string { return "redis" }

func (redisFactory) Validate(cfg config.CacheConfig) error {
	return ValidateRedisConfig(cfg.Redis)
}

func (redisFactory) Create(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (core.KVStore, error) {
	store, err := NewRedisKVStore(ctx, cfg.Redis, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Redis KV store")
	}
	return store, nil
}

func init() {
	RegisterFactory(redisFactory{})
}
