//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/tasktracker/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			id UNINDEXED,
			title,
			description,
			status UNINDEXED,
			priority UNINDEXED,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, t models.Task) error {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE id = ?`, t.ID)
	_, err := tx.Exec(`INSERT INTO tasks_fts (id, title, description, status, priority) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), t.Priority)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       title,
		       status,
		       priority,
		       snippet(tasks_fts, 2, '<b>', '</b>', '...', 64)
		FROM tasks_fts
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
