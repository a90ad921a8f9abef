package core

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrKeyNotFound is returned by KVStore.Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for key-value store operations.
// Implementations back the record cache (Redis/ElastiCache, DynamoDB or memory).
type KVStore interface {
	// Get retrieves a value by key from the store.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// BatchSet stores multiple key-value pairs with a shared TTL.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Close closes the connection to the KV store and releases resources.
	Close() error
}

// ListStore is the FIFO list capability the Redis event queue needs.
type ListStore interface {
	// ListPush appends value to the tail of the list at key.
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the head of the list, or nil when empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the number of elements in the list.
	ListLength(ctx context.Context, key string) (int64, error)
}
