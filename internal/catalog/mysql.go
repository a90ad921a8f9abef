package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// MySQLDialect stores records in an InnoDB table with a unique key on id.
var MySQLDialect = Dialect{
	Name: "mysql",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS strings (
			seq BIGINT NOT NULL AUTO_INCREMENT,
			id CHAR(64) NOT NULL,
			value LONGTEXT NOT NULL,
			length INT NOT NULL,
			is_palindrome BOOLEAN NOT NULL,
			unique_characters INT NOT NULL,
			word_count INT NOT NULL,
			character_frequency_map JSON NOT NULL,
			created_at DATETIME(6) NOT NULL,
			PRIMARY KEY (seq),
			UNIQUE KEY uniq_strings_id (id),
			KEY idx_strings_length (length),
			KEY idx_strings_word_count (word_count)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	},
	IsDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
}

// MySQLDSN builds the driver DSN. Times are parsed into time.Time in UTC.
func MySQLDSN(cfg config.MySQLConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Timeout = cfg.ConnectionTimeout
	return dsn.FormatDSN()
}

// NewMySQLCatalog opens a pooled MySQL connection and ensures the schema.
func NewMySQLCatalog(ctx context.Context, cfg config.MySQLConfig, log zerolog.Logger) (*SQLCatalog, error) {
	db, err := sql.Open("mysql", MySQLDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	c, err := NewSQLCatalog(ctx, db, MySQLDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database).Msg("connected to MySQL")
	return c, nil
}

type mysqlFactory struct{}

func (mysqlFactory) Type() string { return "mysql" }

func (mysqlFactory) Validate(cfg config.CatalogConfig) error {
	m := cfg.MySQL
	if m.Host == "" {
		return errors.New("mysql.host is required")
	}
	if m.Port <= 0 || m.Port > 65535 {
		return errors.New("mysql.port must be between 1 and 65535")
	}
	if m.Database == "" {
		return errors.New("mysql.database is required")
	}
	if m.Username == "" {
		return errors.New("mysql.username is required")
	}
	if m.MaxOpenConns <= 0 {
		return errors.New("mysql.max_open_conns must be greater than 0")
	}
	if m.ConnectionTimeout <= 0 {
		return errors.New("mysql.connection_timeout must be greater than 0")
	}
	return nil
}

func (mysqlFactory) Create(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (core.Catalog, error) {
	return NewMySQLCatalog(ctx, cfg.MySQL, log)
}

func init() {
	RegisterFactory(mysqlFactory{})
}
