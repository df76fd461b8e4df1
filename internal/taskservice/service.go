// Package taskservice coordinates the task store with its secondary
// consumers: the search index and the change-event broker.
package taskservice

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/tasktracker/internal/checksum"
	"github.com/starford/tasktracker/internal/index"
	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/taskstore"
)

// ErrSearchUnavailable is returned by Search when no index is configured.
var ErrSearchUnavailable = errors.New("search index not configured")

// EventPublisher receives committed task mutations.
type EventPublisher interface {
	PublishTaskEvent(action models.Action, id string)
}

// Service is the entry point used by the API, MCP and inbox layers.
type Service struct {
	store  *taskstore.Store
	index  index.TaskIndex
	events EventPublisher
	logger *slog.Logger

	// mu keeps index writes and published events in commit order.
	mu sync.Mutex
}

// NewService creates a new task service. idx and events may be nil.
func NewService(store *taskstore.Store, idx index.TaskIndex, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, index: idx, events: events, logger: logger}
}

// CreateTask validates and inserts a new task.
func (s *Service) CreateTask(_ context.Context, title, description string, priority int) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.Create(title, description, priority)
	if err != nil {
		return models.Task{}, err
	}
	s.committed(models.ActionCreate, t)
	return t, nil
}

// GetTask returns a single task.
func (s *Service) GetTask(_ context.Context, id string) (models.Task, error) {
	return s.store.Get(id)
}

// UpdateTask applies a partial update. A non-empty ifMatch must equal the
// task's current ETag or the update fails with apperr.ErrConflict.
func (s *Service) UpdateTask(_ context.Context, id string, p taskstore.Patch, ifMatch string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pre func(models.Task) bool
	if ifMatch != "" {
		pre = func(cur models.Task) bool { return ETag(cur) == ifMatch }
	}

	t, changed, err := s.store.UpdateIf(id, p, pre)
	if err != nil {
		return models.Task{}, err
	}
	if changed {
		s.committed(models.ActionUpdate, t)
	}
	return t, nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.committed(models.ActionDelete, models.Task{ID: id})
	return nil
}

// ListTasks returns every task in creation order.
func (s *Service) ListTasks(_ context.Context) []models.Task {
	return s.store.List()
}

// FilterTasks returns the tasks matching f in creation order.
func (s *Service) FilterTasks(_ context.Context, f taskstore.Filter) ([]models.Task, error) {
	return s.store.Filter(f)
}

// History returns a copy of the audit log.
func (s *Service) History(_ context.Context) []models.HistoryEvent {
	return s.store.History()
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.index == nil {
		return nil, ErrSearchUnavailable
	}
	return s.index.Search(query, limit)
}

// Reindex reconciles the search index with the store and returns the number
// of rows touched.
func (s *Service) Reindex(_ context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return index.Sync(s.index, s.store.List(), s.logger)
}

// ETag returns the entity tag clients send back in If-Match.
func ETag(t models.Task) string {
	return checksum.Task(t)
}

// committed must be called with s.mu held, after the store accepted the change.
func (s *Service) committed(action models.Action, t models.Task) {
	if s.index != nil {
		var err error
		if action == models.ActionDelete {
			err = s.index.DeleteTask(t.ID)
		} else {
			err = s.index.UpsertTask(t)
		}
		if err != nil {
			// The periodic reindex repairs the projection.
			s.logger.Warn("index write failed",
				slog.String("action", string(action)),
				slog.String("id", t.ID),
				slog.String("error", err.Error()))
		}
	}
	if s.events != nil {
		s.events.PublishTaskEvent(action, t.ID)
	}
	s.logger.Debug("task committed", slog.String("action", string(action)), slog.String("id", t.ID))
}
