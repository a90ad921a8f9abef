package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Validator scopes. A validator's Type is "<scope>/<backend>", e.g. "catalog/mysql".
const (
	ScopeCatalog = "catalog"
	ScopeCache   = "cache"
	ScopeQueue   = "queue"
)

// ConfigValidator is the Strategy interface for validating configuration.
// Each backend provides its own validator and registers it from init().
type ConfigValidator interface {
	// Validate checks only the section of config that belongs to this backend.
	Validate(config *Config) error

	// Type returns the scoped identifier, e.g. "cache/redis".
	Type() string
}

// ValidatorFunc adapts a function to ConfigValidator.
type ValidatorFunc struct {
	Name string
	Fn   func(config *Config) error
}

func (v ValidatorFunc) Validate(config *Config) error { return v.Fn(config) }
func (v ValidatorFunc) Type() string                  { return v.Name }

// Key builds a validator type from a scope and backend name.
func Key(scope, backend string) string {
	return scope + "/" + backend
}

var (
	validatorRegistry      = make(map[string]ConfigValidator)
	validatorRegistryMutex sync.RWMutex
)

// RegisterValidator registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}
	validatorRegistry[validator.Type()] = validator
}

// GetValidator retrieves a validator by scoped type.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisteredBackends lists the backend names registered under scope, sorted.
func RegisteredBackends(scope string) []string {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	prefix := scope + "/"
	var names []string
	for t := range validatorRegistry {
		if strings.HasPrefix(t, prefix) {
			names = append(names, strings.TrimPrefix(t, prefix))
		}
	}
	sort.Strings(names)
	return names
}
