// Package sqlite implements repository.Adapter on an embedded SQLite file.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the server builds without a C
// toolchain and cross-compiles like any other Go binary.
//
// HOW ROWS MAP TO RECORDS:
//   - Timestamps are TEXT in model.TimeLayout. That layout sorts in time
//     order, so "expires_at > ?" is a plain string comparison.
//   - Booleans (used, read) are INTEGER 0/1.
//   - photos / stickers / location are JSON TEXT, encoded by the shared
//     helpers in package repository so Firestore stores the same strings.
//   - Nullable columns scan into sql.NullString / sql.NullInt64 and become
//     nil pointers in the model.
//
// Every statement runs in autocommit mode. The file on disk is the
// persistence; there is no separate save step.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/sanctuary/internal/repository"
	"github.com/sakif/sanctuary/internal/repository/sqlite/migrations"
)

var _ repository.Adapter = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Adapter.
type DB struct {
	conn *sql.DB
	now  repository.Clock
}

// Option configures a DB.
type Option func(*DB)

// WithClock replaces time.Now for defaults and expiry checks.
func WithClock(c repository.Clock) Option {
	return func(db *DB) { db.now = c }
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/sanctuary.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
//
// IN-MEMORY DATABASES AND THE POOL:
// Every connection to ":memory:" gets its own private database. The pool is
// therefore capped at one connection for in-memory paths; otherwise a table
// created on one connection would be missing on the next.
func New(dbPath string, opts ...Option) (*DB, error) {
	inMemory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")

	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
			}
		}
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	dsn := dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight. In-memory
	// databases silently keep their "memory" journal.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every embedded NNN_name.up.sql newer than the recorded
// schema version. Each file runs in its own transaction together with the
// schema_migrations insert, so a failed file leaves no partial schema.
func (db *DB) migrate(fsys fs.FS) error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := db.conn.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, db.nowString(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}
