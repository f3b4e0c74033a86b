// Package sqlitekv implements the kv.Store contract on SQLite.
//
// The whole store is one table mapping a TEXT key to a JSON value. SQLite is
// embedded (modernc.org/sqlite, pure Go, no CGo), so the store is a single
// file on disk, or ":memory:" in tests.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/devtoolbox/internal/kv"
)

// DB wraps a sql.DB connection pool and implements kv.Store.
type DB struct {
	conn *sql.DB
}

var _ kv.Store = (*DB)(nil)

// New opens (or creates) the store at dbPath and runs migrations.
// Use ":memory:" for an in-memory store in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: opening database: %w", err)
	}

	// Every pool connection to ":memory:" would get its own empty
	// database, so pin the pool to one connection there.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Surface bad paths and permissions now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitekv: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight, which matters
	// once multiple requests hit the store.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitekv: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitekv: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv_entries table: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("sqlitekv: getting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any existing value.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlitekv: setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = ?`, key,
	)
	if err != nil {
		return fmt.Errorf("sqlitekv: deleting %s: %w", key, err)
	}
	return nil
}

// GetByPrefix returns all entries whose key starts with prefix.
// substr avoids LIKE so that "_" in prefixes is matched literally.
func (db *DB) GetByPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT key, value FROM kv_entries WHERE substr(key, 1, ?) = ?`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: scanning prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var entries []kv.Entry
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("sqlitekv: scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitekv: iterating entries: %w", err)
	}

	return entries, nil
}
