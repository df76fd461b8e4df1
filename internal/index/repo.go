package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/tasktracker/internal/checksum"
	"github.com/starford/tasktracker/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Status   models.Status `json:"status"`
	Priority int           `json:"priority"`
	Snippet  string        `json:"snippet"`
}

// UpsertTask inserts or replaces a task and its FTS entry within a transaction.
func (db *DB) UpsertTask(t models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO tasks (id, title, description, status, priority, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			status      = excluded.status,
			priority    = excluded.priority,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, t.ID, t.Title, t.Description, string(t.Status), t.Priority, checksum.Task(t),
		models.FormatTime(t.CreatedAt), models.FormatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("index: upsert task: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, t); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteTask removes a task and its FTS entry.
func (db *DB) DeleteTask(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete task: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a task, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM tasks WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns id -> checksum for every indexed task.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r      SearchResult
			status string
		)
		if err := rows.Scan(&r.ID, &r.Title, &status, &r.Priority, &r.Snippet); err != nil {
			return nil, err
		}
		r.Status = models.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
