package stringcatalog

import (
	"github.com/rzpsarthak13/string-catalog/internal/config"
)

// Config is the service configuration. See DefaultConfig for the values
// used when a key is absent from the file.
type Config = config.Config

// DefaultConfig returns a configuration with an embedded SQLite catalog,
// no cache and an in-memory event queue.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads a YAML or JSON file over the defaults, applies
// environment overrides and validates the result. An empty path loads the
// defaults alone.
func LoadConfig(path string) (*Config, error) {
	cm := config.NewConfigManager()
	if path == "" {
		if err := cm.LoadDefaults(); err != nil {
			return nil, err
		}
		return cm.GetConfig(), nil
	}
	if err := cm.LoadFromFile(path); err != nil {
		return nil, err
	}
	return cm.GetConfig(), nil
}
