package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration.
const (
	EnvVarEnvironment   = "STRINGCATALOG_ENV"
	EnvVarMySQLPassword = "MYSQL_PASSWORD"
	EnvVarRedisPassword = "REDIS_PASSWORD"
	EnvVarPort          = "PORT"
)

// ConfigManager handles loading and validating configuration.
type ConfigManager struct {
	config *Config
}

// NewConfigManager creates a manager holding DefaultConfig.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{config: DefaultConfig()}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return errors.Newf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML layers YAML data over the defaults, applies environment
// overrides and validates the result.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return errors.Wrap(err, "failed to parse YAML config")
		}
	}
	return cm.apply(config)
}

// LoadFromJSON layers JSON data over the defaults, applies environment
// overrides and validates the result.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return errors.Wrap(err, "failed to parse JSON config")
		}
	}
	return cm.apply(config)
}

// LoadDefaults validates DefaultConfig with environment overrides applied.
func (cm *ConfigManager) LoadDefaults() error {
	return cm.apply(DefaultConfig())
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

func (cm *ConfigManager) apply(config *Config) error {
	if err := applyEnv(config); err != nil {
		return err
	}
	if err := Validate(config); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	cm.config = config
	return nil
}

func applyEnv(config *Config) error {
	if val := os.Getenv(EnvVarEnvironment); val != "" {
		config.Server.Environment = val
	}
	if val := os.Getenv(EnvVarMySQLPassword); val != "" {
		config.Catalog.MySQL.Password = val
	}
	if val := os.Getenv(EnvVarRedisPassword); val != "" {
		config.Cache.Redis.Password = val
		config.Events.Redis.Password = val
	}
	if val := os.Getenv(EnvVarPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return errors.Newf("%s must be an integer, got %q", EnvVarPort, val)
		}
		config.Server.Port = port
	}
	return nil
}

// Validate checks the generic settings, then hands each backend section to
// the validator registered for it.
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if config.Server.Environment != EnvDevelopment && config.Server.Environment != EnvProduction {
		return errors.Newf("server.environment must be %q or %q", EnvDevelopment, EnvProduction)
	}

	if err := validateScope(ScopeCatalog, config.Catalog.Type, config); err != nil {
		return err
	}

	if config.Cache.Enabled {
		if config.Cache.TTL < 0 {
			return errors.New("cache.ttl must be non-negative")
		}
		if err := validateScope(ScopeCache, config.Cache.Type, config); err != nil {
			return err
		}
	}

	if config.Events.Enabled {
		if config.Events.BatchSize <= 0 {
			return errors.New("events.batch_size must be greater than 0")
		}
		if config.Events.DrainRate <= 0 {
			return errors.New("events.drain_rate must be greater than 0")
		}
		if config.Events.MaxRetries < 0 {
			return errors.New("events.max_retries must be non-negative")
		}
		if config.Events.PollInterval <= 0 {
			return errors.New("events.poll_interval must be greater than 0")
		}
		if err := validateScope(ScopeQueue, config.Events.QueueType, config); err != nil {
			return err
		}
	}

	return nil
}

func validateScope(scope, backend string, config *Config) error {
	if backend == "" {
		return errors.Newf("%s type is required", scope)
	}
	validator, exists := GetValidator(Key(scope, backend))
	if !exists {
		return errors.Newf("unsupported %s type: %s", scope, backend)
	}
	if err := validator.Validate(config); err != nil {
		return errors.Wrapf(err, "%s validation failed", scope)
	}
	return nil
}
