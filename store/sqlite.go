package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite is a Store backed by a local SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS cache (key TEXT PRIMARY KEY, expires INTEGER, value BLOB)"); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	if _, err := db.Exec(
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)"); err != nil {
		return nil, fmt.Errorf("create expires index: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT expires, value FROM cache WHERE key = ?", key).Scan(&expires, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires != 0 && time.Now().After(time.Unix(expires, 0)) {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, expires time.Time, value []byte) error {
	var exp int64
	if !expires.IsZero() {
		exp = expires.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, expires, value) VALUES (?, ?, ?)", key, exp, value)
	return err
}

func (s *SQLite) Purge(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
	return err
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
