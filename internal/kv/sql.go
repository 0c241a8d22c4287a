package kv

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

// Dialect holds the statements that differ between SQL engines.
type Dialect struct {
	Name   string
	Schema string
	Get    string
	Upsert string
	Delete string // prefix; the IN list is appended per call
	Param  func(i int) string
}

// Postgres targets Postgres through the pgx stdlib driver.
var Postgres = Dialect{
	Name: "postgres",
	Schema: `CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	Get: `SELECT value FROM kv_entries WHERE key = $1`,
	Upsert: `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
	Delete: `DELETE FROM kv_entries WHERE key IN `,
	Param:  func(i int) string { return "$" + strconv.Itoa(i) },
}

// SQLite targets a local SQLite file through mattn/go-sqlite3.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: `CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	Get: `SELECT value FROM kv_entries WHERE key = ?`,
	Upsert: `INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
	Delete: `DELETE FROM kv_entries WHERE key IN `,
	Param:  func(int) string { return "?" },
}

// SQL keeps entries in a kv_entries table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL wraps db. Call Migrate before first use.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// Migrate creates the kv_entries table when missing.
func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Schema)
	return err
}

// Get returns the value stored under key.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.Get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Set upserts value under key.
func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Upsert, key, string(value))
	return err
}

// Delete removes the given keys in one statement.
func (s *SQL) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	params := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		params[i] = s.dialect.Param(i + 1)
		args[i] = k
	}
	query := s.dialect.Delete + "(" + strings.Join(params, ", ") + ")"
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Close closes the database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}
