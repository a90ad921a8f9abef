// Package config holds the service configuration and the strategy registry
// of backend-specific validators.
package config

import (
	"time"
)

// Environments recognized by Server.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the root configuration of the string catalog service.
type Config struct {
	// Server contains HTTP listener settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Catalog selects and configures the system-of-record backend.
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Cache configures the optional read-through record cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Events configures catalog change events and their drainer.
	Events EventsConfig `yaml:"events" json:"events"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" json:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Environment is "development" or "production". Development error
	// responses carry the full error chain.
	Environment string `yaml:"environment" json:"environment"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// IsDevelopment reports whether verbose error responses are enabled.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// CatalogConfig selects the catalog backend.
type CatalogConfig struct {
	// Type is one of "sqlite", "mysql", "dynamodb".
	Type string `yaml:"type" json:"type"`

	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	MySQL    MySQLConfig    `yaml:"mysql,omitempty" json:"mysql,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// SQLiteConfig configures the embedded SQLite catalog.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path string `yaml:"path" json:"path"`
}

// MySQLConfig contains configuration for the MySQL catalog.
type MySQLConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`

	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
// It is shared by the DynamoDB catalog and the DynamoDB cache.
type DynamoDBConfig struct {
	Region    string `yaml:"region" json:"region"`
	TableName string `yaml:"table_name" json:"table_name"`

	// Endpoint overrides the service URL, e.g. LocalStack.
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// CacheConfig configures the record cache in front of the catalog.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Type is one of "redis", "dynamodb", "memory".
	Type string `yaml:"type" json:"type"`

	// TTL is how long a cached record lives. Zero means no expiry.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	Redis    RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// RedisConfig contains Redis/ElastiCache connection settings.
type RedisConfig struct {
	// Endpoints is a list of Redis endpoints. Cluster mode uses all of them.
	Endpoints   []string `yaml:"endpoints" json:"endpoints"`
	ClusterMode bool     `yaml:"cluster_mode" json:"cluster_mode"`
	Password    string   `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15). Only used in non-cluster mode.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// EventsConfig contains catalog change event configuration.
type EventsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// QueueType is one of "memory", "redis", "kafka".
	QueueType string `yaml:"queue_type" json:"queue_type"`

	// BatchSize is how many events the drainer takes per dequeue.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// DrainRate is the maximum number of events dispatched per second.
	DrainRate int `yaml:"drain_rate" json:"drain_rate"`

	// MaxRetries bounds redelivery of an event whose handler failed.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// PollInterval is the pause after an empty dequeue.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// QueueBufferSize is the capacity of the in-memory queue.
	QueueBufferSize int `yaml:"queue_buffer_size,omitempty" json:"queue_buffer_size,omitempty"`

	// QueueKey is the Redis list holding events when QueueType is "redis".
	QueueKey string `yaml:"queue_key,omitempty" json:"queue_key,omitempty"`

	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains configuration for the Kafka event queue.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses (e.g., ["localhost:9092"]).
	Brokers []string `yaml:"brokers" json:"brokers"`

	Topic   string `yaml:"topic" json:"topic"`
	GroupID string `yaml:"group_id" json:"group_id"`

	// BatchSize is the batch size for the Kafka producer.
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// RequiredAcks is the number of acknowledgments required (0, 1, or -1 for all).
	RequiredAcks int `yaml:"required_acks" json:"required_acks"`

	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Endpoints:    []string{"localhost:6379"},
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DefaultConfig returns a configuration with sensible defaults: an embedded
// SQLite catalog, no cache, and an in-memory event queue.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            5000,
			Environment:     EnvProduction,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "stringcatalog.db",
			},
			MySQL: MySQLConfig{
				Host:              "localhost",
				Port:              3306,
				Database:          "stringcatalog",
				Username:          "root",
				MaxOpenConns:      25,
				MaxIdleConns:      5,
				ConnMaxLifetime:   5 * time.Minute,
				ConnMaxIdleTime:   10 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
			DynamoDB: DynamoDBConfig{
				Region:    "us-east-1",
				TableName: "strings",
			},
		},
		Cache: CacheConfig{
			Enabled: false,
			Type:    "redis",
			TTL:     1 * time.Hour,
			Redis:   defaultRedisConfig(),
			DynamoDB: DynamoDBConfig{
				Region:    "us-east-1",
				TableName: "string-cache",
			},
		},
		Events: EventsConfig{
			Enabled:         true,
			QueueType:       "memory",
			BatchSize:       100,
			DrainRate:       50,
			MaxRetries:      3,
			PollInterval:    100 * time.Millisecond,
			QueueBufferSize: 10000,
			QueueKey:        "stringcatalog:events",
			Redis:           defaultRedisConfig(),
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "stringcatalog-events",
				GroupID:         "stringcatalog-events",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024, // 10MB
				MaxWait:         100 * time.Millisecond,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
