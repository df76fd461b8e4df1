// Package inbox imports Markdown task drafts dropped into a directory.
//
// Each top-level .md file is parsed into a task and created through the
// service. Accepted drafts are moved to processed/ (or deleted), rejected
// drafts are moved to rejected/ next to a .reason file describing the error.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/parser"
	"github.com/starford/tasktracker/internal/storage"
	"github.com/starford/tasktracker/internal/taskstore"
)

// Subdirectories used for finished drafts.
const (
	ProcessedDir = "processed"
	RejectedDir  = "rejected"
)

// ErrRejected wraps the reason a draft was moved to rejected/.
var ErrRejected = errors.New("draft rejected")

// TaskWriter is the subset of the task service used by the importer.
type TaskWriter interface {
	CreateTask(ctx context.Context, title, description string, priority int) (models.Task, error)
	UpdateTask(ctx context.Context, id string, p taskstore.Patch, ifMatch string) (models.Task, error)
}

// Importer turns draft files into tasks.
type Importer struct {
	files         storage.Provider
	tasks         TaskWriter
	keepProcessed bool
	logger        *slog.Logger

	// mu serializes imports so a file seen by both Scan and Watch is handled once.
	mu sync.Mutex
}

// Option configures an Importer.
type Option func(*Importer)

// WithKeepProcessed controls whether accepted drafts are kept under
// processed/ (true) or deleted (false).
func WithKeepProcessed(keep bool) Option {
	return func(im *Importer) { im.keepProcessed = keep }
}

// WithLogger sets the importer logger.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// New creates an Importer reading drafts from files.
func New(files storage.Provider, tasks TaskWriter, opts ...Option) *Importer {
	im := &Importer{
		files:         files,
		tasks:         tasks,
		keepProcessed: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Scan imports every draft currently in the inbox root and returns the
// number of tasks created. Rejected drafts are not errors.
func (im *Importer) Scan(ctx context.Context) (int, error) {
	entries, err := im.files.List("")
	if err != nil {
		return 0, fmt.Errorf("inbox: scan: %w", err)
	}
	created := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if _, err := im.Import(ctx, e.Path); err == nil {
			created++
		} else if !errors.Is(err, ErrRejected) {
			return created, err
		}
	}
	return created, nil
}

// Import processes a single draft at name (relative to the inbox root).
// Drafts that fail to parse or validate are moved to rejected/ and reported
// as ErrRejected. Other errors leave the file in place.
func (im *Importer) Import(ctx context.Context, name string) (models.Task, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := im.files.Read(name)
	if err != nil {
		return models.Task{}, fmt.Errorf("inbox: %w", err)
	}

	draft, err := parser.Parse(data)
	if err != nil {
		return models.Task{}, im.reject(name, err)
	}

	task, err := im.tasks.CreateTask(ctx, draft.Title, draft.Description, draft.Priority)
	if err != nil {
		return models.Task{}, im.reject(name, err)
	}
	if draft.Status != nil && *draft.Status != task.Status {
		updated, err := im.tasks.UpdateTask(ctx, task.ID, taskstore.Patch{Status: draft.Status}, "")
		if err != nil {
			im.logger.Warn("inbox: apply draft status failed",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()))
		} else {
			task = updated
		}
	}

	if err := im.finish(name); err != nil {
		im.logger.Warn("inbox: archive draft failed",
			slog.String("path", name),
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()))
	}
	im.logger.Info("inbox: imported draft",
		slog.String("path", name),
		slog.String("task_id", task.ID))
	return task, nil
}

func (im *Importer) finish(name string) error {
	if !im.keepProcessed {
		return im.files.Delete(name)
	}
	return im.files.Move(name, path.Join(ProcessedDir, path.Base(name)))
}

func (im *Importer) reject(name string, cause error) error {
	base := path.Base(name)
	im.logger.Warn("inbox: rejected draft",
		slog.String("path", name),
		slog.String("reason", cause.Error()))

	if err := im.files.Move(name, path.Join(RejectedDir, base)); err != nil {
		return fmt.Errorf("inbox: move rejected %s: %w", name, err)
	}
	if err := im.files.Write(path.Join(RejectedDir, base+".reason"), []byte(cause.Error()+"\n")); err != nil {
		im.logger.Warn("inbox: write reason failed", slog.String("path", name), slog.String("error", err.Error()))
	}
	return fmt.Errorf("%w: %s: %w", ErrRejected, name, cause)
}
