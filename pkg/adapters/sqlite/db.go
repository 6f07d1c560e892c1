// Package sqlite persists sessions and knowledge documents in a single SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is an open lendflow database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		path = filepath.Join(".lendflow", "lendflow.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Sessions returns a session store backed by d.
func (d *DB) Sessions() *Store {
	return &Store{db: d.db}
}

// Knowledge returns a knowledge base backed by d.
func (d *DB) Knowledge() *Knowledge {
	return &Knowledge{db: d.db}
}

func (d *DB) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		stage       TEXT NOT NULL,
		data        BLOB NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS knowledge_documents (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		metadata    TEXT,
		created_at  TEXT NOT NULL
	);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}
