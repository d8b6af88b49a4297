// Package sqlite implements store.Backend on top of an embedded SQLite database.
//
// ONE ROW PER COLLECTION:
// The store hands us whole collections as opaque JSON blobs, so the schema is
// a single key/value table:
//
//	collections(name TEXT PRIMARY KEY, data BLOB, updated_at DATETIME)
//
// A Save is one UPSERT, which SQLite applies atomically. There is no need for
// the temp-file-and-rename dance the file backend does.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, cross
// compilation just works.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/ziphub/internal/store"
)

// DB is a store.Backend backed by a SQLite connection pool.
type DB struct {
	conn *sql.DB
}

var _ store.Backend = (*DB)(nil)
var _ store.Archiver = (*DB)(nil)

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/ziphub.db" → file-based database
//   - ":memory:"       → in-memory database, lost on Close
//
// PRAGMAS IN THE DSN:
// database/sql is a pool, and a PRAGMA executed with conn.Exec only reaches
// whichever connection ran it. Putting them in the DSN applies them to every
// connection the pool opens. The pool is also capped at one connection: the
// Store already serializes work per collection, and a single writer means
// SQLITE_BUSY cannot happen between our own connections.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

func dsn(dbPath string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if dbPath == ":memory:" {
		return ":memory:?" + pragmas
	}
	return "file:" + filepath.ToSlash(strings.TrimSpace(dbPath)) + "?" + pragmas
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating collections table: %w", err)
	}

	// Corrupt blobs the store discarded, kept for manual recovery.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collection_archive (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			data        BLOB NOT NULL,
			archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_collection_archive_name ON collection_archive(name);
	`)
	if err != nil {
		return fmt.Errorf("creating collection_archive table: %w", err)
	}
	return nil
}

// Load returns the stored blob, or store.ErrNotExist if the collection was never saved.
func (db *DB) Load(ctx context.Context, name string) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM collections WHERE name = ?`, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotExist
		}
		return nil, fmt.Errorf("sqlite: loading %s: %w", name, err)
	}
	return data, nil
}

// Save replaces the collection blob.
func (db *DB) Save(ctx context.Context, name string, data []byte) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO collections (name, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, name, data)
	if err != nil {
		return fmt.Errorf("sqlite: saving %s: %w", name, err)
	}
	return nil
}

// Archive keeps a copy of content the store is about to discard.
func (db *DB) Archive(ctx context.Context, name string, data []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO collection_archive (name, data) VALUES (?, ?)`, name, data,
	)
	if err != nil {
		return fmt.Errorf("sqlite: archiving %s: %w", name, err)
	}
	return nil
}

// ArchivedCount reports how many corrupt blobs have been archived for name.
func (db *DB) ArchivedCount(ctx context.Context, name string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_archive WHERE name = ?`, name,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting archive for %s: %w", name, err)
	}
	return n, nil
}
