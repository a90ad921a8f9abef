package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKVStore is a process-local core.KVStore and core.ListStore.
// It suits single-instance deployments and tests.
type MemoryKVStore struct {
	mu     sync.Mutex
	data   map[string]memoryEntry
	lists  map[string][][]byte
	now    func() time.Time
	closed bool
}

// NewMemoryKVStore creates an empty store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		data:  make(map[string]memoryEntry),
		lists: make(map[string][][]byte),
		now:   time.Now,
	}
}

func (m *MemoryKVStore) live(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryKVStore) set(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	e, ok := m.live(key)
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.set(key, value, ttl)
	return nil
}

func (m *MemoryKVStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKVStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, errClosed
	}
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemoryKVStore) BatchSet(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	for k, v := range items {
		m.set(k, v, ttl)
	}
	return nil
}

func (m *MemoryKVStore) ListPush(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.lists[key] = append(m.lists[key], append([]byte(nil), value...))
	return nil
}

func (m *MemoryKVStore) ListPop(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	l := m.lists[key]
	if len(l) == 0 {
		return nil, nil
	}
	head := l[0]
	m.lists[key] = l[1:]
	return head, nil
}

func (m *MemoryKVStore) ListLength(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errClosed
	}
	return int64(len(m.lists[key])), nil
}

func (m *MemoryKVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memoryFactory struct{}

func (memoryFactory) Type() string { return "memory" }

func (memoryFactory) Validate(config.CacheConfig) error { return nil }

func (memoryFactory) Create(context.Context, config.CacheConfig, zerolog.Logger) (core.KVStore, error) {
	return NewMemoryKVStore(), nil
}

func init() {
	RegisterFactory(memoryFactory{})
}
