package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// register backend validators
	_ "github.com/rzpsarthak13/string-catalog/internal/catalog"
	_ "github.com/rzpsarthak13/string-catalog/internal/events"
	_ "github.com/rzpsarthak13/string-catalog/internal/kvstore"

	"github.com/rzpsarthak13/string-catalog/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvVarEnvironment, config.EnvVarMySQLPassword, config.EnvVarRedisPassword, config.EnvVarPort} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cm := config.NewConfigManager()
	require.NoError(t, cm.LoadDefaults())

	cfg := cm.GetConfig()
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "sqlite", cfg.Catalog.Type)
	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "memory", cfg.Events.QueueType)
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	cm := config.NewConfigManager()
	err := cm.LoadFromYAML([]byte(`
server:
  port: 8080
  environment: development
catalog:
  type: mysql
  mysql:
    host: db.internal
    port: 3307
    database: strings
    username: svc
    max_open_conns: 10
    connection_timeout: 3s
cache:
  enabled: true
  type: redis
  ttl: 30m
  redis:
    endpoints: ["cache:6379"]
    pool_size: 20
events:
  queue_type: kafka
  drain_rate: 200
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
    topic: catalog-changes
    required_acks: 1
log:
  level: debug
  pretty: true
`))
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "db.internal", cfg.Catalog.MySQL.Host)
	assert.Equal(t, 3*time.Second, cfg.Catalog.MySQL.ConnectionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"cache:6379"}, cfg.Cache.Redis.Endpoints)
	assert.Equal(t, 200, cfg.Events.DrainRate)
	assert.Equal(t, "catalog-changes", cfg.Events.Kafka.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Events.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadFromJSON(t *testing.T) {
	clearEnv(t)
	cm := config.NewConfigManager()
	require.NoError(t, cm.LoadFromJSON([]byte(`{"server": {"port": 9090}, "catalog": {"type": "sqlite", "sqlite": {"path": "/tmp/x.db"}}}`)))
	assert.Equal(t, 9090, cm.GetConfig().Server.Port)
	assert.Equal(t, "/tmp/x.db", cm.GetConfig().Catalog.SQLite.Path)

	assert.Error(t, cm.LoadFromJSON([]byte(`{"server": `)))
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 7000\n"), 0o600))
	cm := config.NewConfigManager()
	require.NoError(t, cm.LoadFromFile(yamlPath))
	assert.Equal(t, 7000, cm.GetConfig().Server.Port)

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	err := cm.LoadFromFile(tomlPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvVarPort, "6000")
	t.Setenv(config.EnvVarEnvironment, "development")
	t.Setenv(config.EnvVarMySQLPassword, "s3cret")
	t.Setenv(config.EnvVarRedisPassword, "r3dis")

	cm := config.NewConfigManager()
	require.NoError(t, cm.LoadDefaults())

	cfg := cm.GetConfig()
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "s3cret", cfg.Catalog.MySQL.Password)
	assert.Equal(t, "r3dis", cfg.Cache.Redis.Password)
	assert.Equal(t, "r3dis", cfg.Events.Redis.Password)

	t.Setenv(config.EnvVarPort, "eighty")
	err := config.NewConfigManager().LoadDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT must be an integer")
}

func TestFailedLoadKeepsPreviousConfig(t *testing.T) {
	clearEnv(t)
	cm := config.NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte("server:\n  port: 7100\n")))

	require.Error(t, cm.LoadFromYAML([]byte("server:\n  port: 0\n")))
	assert.Equal(t, 7100, cm.GetConfig().Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"defaults", func(c *config.Config) {}, ""},
		{"port too high", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad environment", func(c *config.Config) { c.Server.Environment = "staging" }, "server.environment"},
		{"no catalog type", func(c *config.Config) { c.Catalog.Type = "" }, "catalog type is required"},
		{"unknown catalog", func(c *config.Config) { c.Catalog.Type = "postgres" }, "unsupported catalog type: postgres"},
		{"sqlite without path", func(c *config.Config) { c.Catalog.SQLite.Path = "" }, "catalog validation failed"},
		{"mysql without user", func(c *config.Config) {
			c.Catalog.Type = "mysql"
			c.Catalog.MySQL.Username = ""
		}, "mysql.username"},
		{"dynamodb without table", func(c *config.Config) {
			c.Catalog.Type = "dynamodb"
			c.Catalog.DynamoDB.TableName = ""
		}, "catalog validation failed"},
		{"disabled cache is not validated", func(c *config.Config) { c.Cache.Type = "memcached" }, ""},
		{"unknown cache", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Type = "memcached"
		}, "unsupported cache type: memcached"},
		{"negative ttl", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = -time.Second
		}, "cache.ttl"},
		{"redis cache without endpoints", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Redis.Endpoints = nil
		}, "cache validation failed"},
		{"zero drain rate", func(c *config.Config) { c.Events.DrainRate = 0 }, "events.drain_rate"},
		{"zero batch size", func(c *config.Config) { c.Events.BatchSize = 0 }, "events.batch_size"},
		{"zero poll interval", func(c *config.Config) { c.Events.PollInterval = 0 }, "events.poll_interval"},
		{"unknown queue", func(c *config.Config) { c.Events.QueueType = "sqs" }, "unsupported queue type: sqs"},
		{"kafka without topic", func(c *config.Config) {
			c.Events.QueueType = "kafka"
			c.Events.Kafka.Topic = ""
		}, "queue validation failed"},
		{"disabled events are not validated", func(c *config.Config) {
			c.Events.Enabled = false
			c.Events.DrainRate = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegisteredBackends(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "mysql", "sqlite"}, config.RegisteredBackends(config.ScopeCatalog))
	assert.Equal(t, []string{"dynamodb", "memory", "redis"}, config.RegisteredBackends(config.ScopeCache))
	assert.Equal(t, []string{"kafka", "memory", "redis"}, config.RegisteredBackends(config.ScopeQueue))
}

func TestRegisterValidatorPanicsOnDuplicate(t *testing.T) {
	v := config.ValidatorFunc{Name: "test/dup", Fn: func(*config.Config) error { return nil }}
	config.RegisterValidator(v)
	assert.Panics(t, func() { config.RegisterValidator(v) })
	assert.Panics(t, func() { config.RegisterValidator(config.ValidatorFunc{}) })

	got, ok := config.GetValidator("test/dup")
	require.True(t, ok)
	assert.Equal(t, "test/dup", got.Type())
}
