// Package catalog implements core.Catalog on SQL databases and DynamoDB,
// plus a read-through cache decorator.
package catalog

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

// Factory is the Strategy interface for creating catalog backends.
type Factory interface {
	// Create opens the backend described by cfg.
	Create(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (core.Catalog, error)

	// Type returns the type identifier (e.g., "sqlite", "mysql").
	Type() string

	// Validate checks the configuration specific to this backend.
	Validate(cfg config.CatalogConfig) error
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a backend factory and its "catalog/<type>"
// config validator. Called from each implementation's init().
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
		Name: config.Key(config.ScopeCatalog, factory.Type()),
		Fn: func(c *config.Config) error {
			return factory.Validate(c.Catalog)
		},
	})
}

// Create opens the catalog backend selected by cfg.Type.
func Create(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (core.Catalog, error) {
	if cfg.Type == "" {
		return nil, errors.New("catalog type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[cfg.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, errors.Newf("unsupported catalog type: %s", cfg.Type)
	}
	if err := factory.Validate(cfg); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration for %s", cfg.Type)
	}
	return factory.Create(ctx, cfg, log)
}

// GetRegisteredTypes returns the registered backend types, sorted.
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
