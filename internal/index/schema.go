// Package index provides a SQLite-backed search projection of the task table
// with optional FTS5 full-text search. The projection is derived state: it is
// rebuilt from the store and never read back into it.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN selects a private in-memory database.
const MemoryDSN = ":memory:"

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'OPEN',
	priority    INTEGER NOT NULL DEFAULT 3,
	checksum    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// An empty dsn or MemoryDSN yields an in-memory database pinned to a single
// connection, since every new connection would otherwise see an empty one.
func Open(dsn string) (*DB, error) {
	memory := dsn == "" || dsn == MemoryDSN

	var full string
	if memory {
		full = MemoryDSN + "?_busy_timeout=5000"
	} else {
		full = dsn + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	conn, err := sql.Open("sqlite3", full)
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if memory {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
