package index

import (
	"log/slog"

	"github.com/starford/tasktracker/internal/checksum"
	"github.com/starford/tasktracker/internal/models"
)

// Sync brings the index up to date with tasks:
//   - new/changed tasks are upserted
//   - indexed tasks missing from tasks are deleted
//
// Per-task failures are logged and skipped; the returned count is the number
// of rows written or removed.
func Sync(db TaskIndex, tasks []models.Task, logger *slog.Logger) (int, error) {
	checksums, err := db.AllChecksums()
	if err != nil {
		return 0, err
	}

	changed := 0
	live := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		live[t.ID] = struct{}{}

		if checksums[t.ID] == checksum.Task(t) {
			continue
		}
		if err := db.UpsertTask(t); err != nil {
			logger.Warn("sync: index failed", slog.String("id", t.ID), slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: indexed", slog.String("id", t.ID))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.DeleteTask(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: removed stale", slog.String("id", id))
	}

	return changed, nil
}
