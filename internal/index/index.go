package index

import "github.com/starford/tasktracker/internal/models"

// TaskIndex defines the interface for task indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type TaskIndex interface {
	UpsertTask(t models.Task) error
	DeleteTask(id string) error
	GetChecksum(id string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies TaskIndex at compile time.
var _ TaskIndex = (*DB)(nil)
