package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS storage_items (
	area  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (area, key)
)`

// SQLiteDB owns the database file backing persistent storage areas.
type SQLiteDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) the database at path and creates the schema.
// Use ":memory:" in tests.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage schema: %w", err)
	}

	return &SQLiteDB{
		db:     db,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Area returns the storage area with the given name (e.g. "local").
func (s *SQLiteDB) Area(name string) *SQLiteRepo {
	return &SQLiteRepo{db: s.db, area: name, logger: s.logger.With().Str("area", name).Logger()}
}

// SQLiteRepo is a Repo persisted in SQLite, used for the local storage area.
type SQLiteRepo struct {
	db     *sql.DB
	area   string
	logger zerolog.Logger
}

var _ Repo = (*SQLiteRepo)(nil)

func (r *SQLiteRepo) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM storage_items WHERE area = ? AND key = ?`, r.area, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepo) Set(key, value string) error {
	r.logger.Debug().Str("op", "upsert").Str("key", key).Msg("sql")
	_, err := r.db.Exec(`INSERT INTO storage_items (area, key, value) VALUES (?, ?, ?)
		ON CONFLICT(area, key) DO UPDATE SET value = excluded.value`, r.area, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepo) Delete(key string) error {
	r.logger.Debug().Str("op", "delete").Str("key", key).Msg("sql")
	if _, err := r.db.Exec(`DELETE FROM storage_items WHERE area = ? AND key = ?`, r.area, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepo) Keys() ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM storage_items WHERE area = ? ORDER BY key`, r.area)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
