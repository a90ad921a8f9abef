package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	// Name is used for logging, e.g. "mysql".
	Name string

	// Schema holds idempotent DDL statements run at open.
	Schema []string

	// IsDuplicate reports whether err is a unique-key violation.
	IsDuplicate func(err error) bool
}

const selectColumns = `SELECT id, value, length, is_palindrome, unique_characters, word_count, character_frequency_map, created_at FROM strings`

const insertRecord = `INSERT INTO strings (id, value, length, is_palindrome, unique_characters, word_count, character_frequency_map, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SQLCatalog implements core.Catalog on a database/sql handle.
// Rows carry an auto-increment seq column that defines insertion order.
type SQLCatalog struct {
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
	now     func() time.Time
	closed  atomic.Bool
}

// NewSQLCatalog takes ownership of db and applies the dialect schema.
func NewSQLCatalog(ctx context.Context, db *sql.DB, dialect Dialect, log zerolog.Logger) (*SQLCatalog, error) {
	c := &SQLCatalog{
		db:      db,
		dialect: dialect,
		log:     logger.Component(log, dialect.Name),
		now:     time.Now,
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrapf(err, "failed to apply %s schema", dialect.Name)
		}
	}
	return c, nil
}

func (c *SQLCatalog) checkOpen() error {
	if c.closed.Load() {
		return core.Storage(errors.New("database is closed"), "catalog is closed")
	}
	return nil
}

// Put inserts the analyzed record. The unique index on id rejects duplicates.
func (c *SQLCatalog) Put(ctx context.Context, value string) (*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	rec := properties.NewRecord(value, c.now())
	freq, err := json.Marshal(rec.Properties.CharacterFrequencyMap)
	if err != nil {
		return nil, core.Storage(err, "failed to encode character frequency map")
	}

	_, err = c.db.ExecContext(ctx, insertRecord,
		rec.ID,
		rec.Value,
		rec.Properties.Length,
		rec.Properties.IsPalindrome,
		rec.Properties.UniqueCharacters,
		rec.Properties.WordCount,
		string(freq),
		rec.CreatedAt,
	)
	if err != nil {
		if c.dialect.IsDuplicate(err) {
			return nil, duplicateError(value)
		}
		c.log.Error().Err(err).Str("id", rec.ID).Msg("insert failed")
		return nil, core.Storage(err, "failed to store string")
	}

	c.log.Debug().Str("id", rec.ID).Int("length", rec.Properties.Length).Msg("string stored")
	return rec, nil
}

// GetByValue looks the record up by its content hash.
func (c *SQLCatalog) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	row := c.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, properties.Hash(value))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundError(value)
	}
	if err != nil {
		return nil, core.Storage(err, "failed to load string")
	}
	return rec, nil
}

// Query pushes the numeric and boolean predicates into SQL and applies the
// substring predicate in Go so that case folding is identical on every backend.
func (c *SQLCatalog) Query(ctx context.Context, filter core.QueryFilter) ([]*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	query, args := buildQuery(filter)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Storage(err, "failed to query strings")
	}
	defer rows.Close()

	records := make([]*core.StringRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, core.Storage(err, "failed to read string")
		}
		if filter.MatchesValue(rec.Value) {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.Storage(err, "failed to iterate strings")
	}
	return records, nil
}

// Delete removes the row in a single statement.
func (c *SQLCatalog) Delete(ctx context.Context, value string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM strings WHERE id = ?`, properties.Hash(value))
	if err != nil {
		return core.Storage(err, "failed to delete string")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Storage(err, "failed to delete string")
	}
	if n == 0 {
		return notFoundError(value)
	}
	return nil
}

// Count returns the number of rows.
func (c *SQLCatalog) Count(ctx context.Context) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strings`).Scan(&n); err != nil {
		return 0, core.Storage(err, "failed to count strings")
	}
	return n, nil
}

// Close closes the database handle.
func (c *SQLCatalog) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.log.Info().Msg("database connection closed")
	return c.db.Close()
}

func buildQuery(f core.QueryFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if f.IsPalindrome != nil {
		where = append(where, "is_palindrome = ?")
		args = append(args, *f.IsPalindrome)
	}
	if f.MinLength != nil {
		where = append(where, "length >= ?")
		args = append(args, *f.MinLength)
	}
	if f.MaxLength != nil {
		where = append(where, "length <= ?")
		args = append(args, *f.MaxLength)
	}
	if f.WordCount != nil {
		where = append(where, "word_count = ?")
		args = append(args, *f.WordCount)
	}

	var b strings.Builder
	b.WriteString(selectColumns)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq")
	return b.String(), args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*core.StringRecord, error) {
	var (
		rec  core.StringRecord
		freq []byte
	)
	err := s.Scan(
		&rec.ID,
		&rec.Value,
		&rec.Properties.Length,
		&rec.Properties.IsPalindrome,
		&rec.Properties.UniqueCharacters,
		&rec.Properties.WordCount,
		&freq,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(freq, &rec.Properties.CharacterFrequencyMap); err != nil {
		return nil, errors.Wrapf(err, "corrupt character_frequency_map for %s", rec.ID)
	}
	rec.Properties.SHA256Hash = rec.ID
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func duplicateError(value string) error {
	return core.Duplicate("Duplicate value: %q. Please use another value", value)
}

func notFoundError(value string) error {
	return core.NotFound("String %q does not exist in the system", value)
}
