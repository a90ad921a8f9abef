package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// MemoryPath opens a private in-process SQLite database.
const MemoryPath = ":memory:"

// SQLiteDialect is the embedded default backend.
var SQLiteDialect = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS strings (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			value TEXT NOT NULL,
			length INTEGER NOT NULL,
			is_palindrome INTEGER NOT NULL,
			unique_characters INTEGER NOT NULL,
			word_count INTEGER NOT NULL,
			character_frequency_map TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strings_length ON strings(length)`,
		`CREATE INDEX IF NOT EXISTS idx_strings_word_count ON strings(word_count)`,
	},
	IsDuplicate: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// NewSQLiteCatalog opens (creating if needed) the database at path.
func NewSQLiteCatalog(ctx context.Context, path string, log zerolog.Logger) (*SQLCatalog, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "creating db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if path == MemoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "setting pragma %q", p)
		}
	}

	c, err := NewSQLCatalog(ctx, db, SQLiteDialect, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.log.Info().Str("path", path).Msg("opened SQLite catalog")
	return c, nil
}

type sqliteFactory struct{}

func (sqliteFactory) Type() string { return "sqlite" }

func (sqliteFactory) Validate(cfg config.CatalogConfig) error {
	if cfg.SQLite.Path == "" {
		return errors.New("sqlite.path is required")
	}
	return nil
}

func (sqliteFactory) Create(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (core.Catalog, error) {
	return NewSQLiteCatalog(ctx, cfg.SQLite.Path, log)
}

func init() {
	RegisterFactory(sqliteFactory{})
}
