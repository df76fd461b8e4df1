// Package testutil provides shared test helpers for setting up indexes,
// services and inbox directories.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/tasktracker/internal/index"
	"github.com/starford/tasktracker/internal/storage"
	"github.com/starford/tasktracker/internal/taskservice"
	"github.com/starford/tasktracker/internal/taskstore"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tasktracker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService wires a fresh store to a temporary index. events may be nil.
func TestService(t *testing.T, events taskservice.EventPublisher, opts ...taskstore.Option) *taskservice.Service {
	t.Helper()
	return taskservice.NewService(taskstore.New(opts...), TestDB(t), events, QuietLogger())
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
