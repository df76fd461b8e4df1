// Package taskstore implements the in-memory task table and its audit log.
//
// Store is the sole owner of every task it holds. All methods hand out value
// copies, and one mutex serializes every operation so that an update sees a
// consistent snapshot while it validates and applies its changes.
package taskstore

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tasktracker/internal/apperr"
	"github.com/starford/tasktracker/internal/models"
)

// maxIDAttempts bounds retries when the id generator repeats itself.
const maxIDAttempts = 8

// Patch lists the fields an update should consider. Nil means absent.
type Patch struct {
	Title       *string
	Description *string
	Status      *models.Status
	Priority    *int
}

// Empty reports whether no field is supplied.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil
}

// Filter narrows List results. Nil fields impose no constraint.
type Filter struct {
	Status      *models.Status
	MinPriority *int
}

type entry struct {
	task models.Task
	seq  uint64
}

// Store is an in-memory task table with an append-only history.
type Store struct {
	clock Clock
	newID func() string

	mu      sync.Mutex
	tasks   map[string]*entry
	issued  map[string]struct{}
	seq     uint64
	history []models.HistoryEvent
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:  systemClock{},
		newID:  defaultIDGenerator,
		tasks:  make(map[string]*entry),
		issued: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the inputs and inserts a new OPEN task.
func (s *Store) Create(title, description string, priority int) (models.Task, error) {
	if err := asValidationError(validation.Errors{
		"title":    validateTitle(title),
		"priority": validatePriority(priority),
	}); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateID()
	if err != nil {
		return models.Task{}, err
	}

	now := s.clock.Now().UTC()
	t := models.Task{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      models.StatusOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.seq++
	s.tasks[id] = &entry{task: t, seq: s.seq}
	s.issued[id] = struct{}{}
	s.record(models.ActionCreate, id, now)
	return t, nil
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return models.Task{}, notFound(id)
	}
	return e.task, nil
}

// Update applies a partial update. Every supplied field is validated before
// anything changes; a rejected update leaves the task untouched. When all
// supplied values equal the current ones nothing is recorded and UpdatedAt
// keeps its value.
func (s *Store) Update(id string, p Patch) (models.Task, error) {
	t, _, err := s.UpdateIf(id, p, nil)
	return t, err
}

// UpdateIf is Update guarded by a precondition evaluated on the current task
// while the store is locked. A false precondition yields apperr.ErrConflict.
// The boolean reports whether the update was committed, as opposed to being
// a no-op.
func (s *Store) UpdateIf(id string, p Patch, pre func(models.Task) bool) (models.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false, notFound(id)
	}
	cur := e.task
	if pre != nil && !pre(cur) {
		return models.Task{}, false, fmt.Errorf("task %q changed: %w", id, apperr.ErrConflict)
	}

	// Phase one: stage and validate every supplied field.
	next := cur
	errs := validation.Errors{}
	if p.Title != nil {
		errs["title"] = validateTitle(*p.Title)
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		errs["status"] = validateStatus(*p.Status)
		next.Status = *p.Status
	}
	if p.Priority != nil {
		errs["priority"] = validatePriority(*p.Priority)
		next.Priority = *p.Priority
	}
	if err := asValidationError(errs); err != nil {
		return models.Task{}, false, err
	}

	// Phase two: commit only a real change.
	if sameContent(cur, next) {
		return cur, false, nil
	}
	now := s.clock.Now().UTC()
	if now.Before(cur.UpdatedAt) {
		now = cur.UpdatedAt
	}
	next.UpdatedAt = now
	e.task = next
	s.record(models.ActionUpdate, id, now)
	return next, true, nil
}

// Delete removes the task and records the deletion.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound(id)
	}
	delete(s.tasks, id)
	s.record(models.ActionDelete, id, s.clock.Now().UTC())
	return nil
}

// List returns every task ordered by creation time, ties broken by insertion
// order.
func (s *Store) List() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(models.Task) bool { return true })
}

// Filter returns the tasks matching every supplied constraint, in List order.
// An unknown status is a validation error.
func (s *Store) Filter(f Filter) ([]models.Task, error) {
	if f.Status != nil {
		if err := asValidationError(validation.Errors{"status": validateStatus(*f.Status)}); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(t models.Task) bool {
		if f.Status != nil && t.Status != *f.Status {
			return false
		}
		if f.MinPriority != nil && t.Priority < *f.MinPriority {
			return false
		}
		return true
	}), nil
}

// History returns a copy of the audit log in append order.
func (s *Store) History() []models.HistoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.history)
}

// Len returns the number of live tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}

// collect must be called with s.mu held.
func (s *Store) collect(keep func(models.Task) bool) []models.Task {
	matched := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		if keep(e.task) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b *entry) int {
		if c := a.task.CreatedAt.Compare(b.task.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]models.Task, len(matched))
	for i, e := range matched {
		out[i] = e.task
	}
	return out
}

// allocateID must be called with s.mu held.
func (s *Store) allocateID() (string, error) {
	for range maxIDAttempts {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, taken := s.issued[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate task id: %w", apperr.ErrAlreadyExists)
}

// record must be called with s.mu held.
func (s *Store) record(action models.Action, id string, at time.Time) {
	s.history = append(s.history, models.HistoryEvent{Action: action, TaskID: id, At: at})
}

// sameContent compares the user-editable fields only.
func sameContent(a, b models.Task) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.Status == b.Status &&
		a.Priority == b.Priority
}

func notFound(id string) error {
	return fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
}
