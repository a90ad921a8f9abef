package kvstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// Factory is the Strategy interface for creating cache store implementations.
type Factory interface {
	// Create builds a store from the cache section of the configuration.
	Create(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (core.KVStore, error)

	// Type returns the type identifier (e.g., "redis", "dynamodb").
	Type() string

	// Validate checks the configuration specific to this store type.
	Validate(cfg config.CacheConfig) error
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a store factory together with a config validator
// under "cache/<type>". Called from each implementation's init().
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	config.RegisterValidator(config.ValidatorFunc{
		Name: config.Key(config.ScopeCache, factory.Type()),
		Fn: func(c *config.Config) error {
			return factory.Validate(c.Cache)
		},
	})
}

// Create creates a store using the factory registered for cfg.Type.
func Create(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (core.KVStore, error) {
	if cfg.Type == "" {
		return nil, errors.New("cache type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, errors.Newf("unsupported cache type: %s", cfg.Type)
	}
	if err := factory.Validate(cfg); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration for %s", cfg.Type)
	}
	return factory.Create(ctx, cfg, log)
}

// GetRegisteredTypes returns the registered store types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
