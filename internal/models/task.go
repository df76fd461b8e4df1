// Package models defines the domain types for the task tracker.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformed is returned when a serialized task cannot be decoded.
var ErrMalformed = errors.New("malformed task")

// Priority bounds. 1 is the highest priority.
const (
	MinPriority = 1
	MaxPriority = 5
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses returns every valid status in declaration order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusDone}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus converts a plain string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Task is a single tracked record. It holds no reference fields, so a plain
// assignment yields an independent copy.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Equal reports whether t and o carry the same field values.
func (t Task) Equal(o Task) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Description == o.Description &&
		t.Status == o.Status &&
		t.Priority == o.Priority &&
		t.CreatedAt.Equal(o.CreatedAt) &&
		t.UpdatedAt.Equal(o.UpdatedAt)
}

// Serialize returns the flat key-value form of the task.
func (t Task) Serialize() map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    t.Priority,
		"created_at":  FormatTime(t.CreatedAt),
		"updated_at":  FormatTime(t.UpdatedAt),
	}
}

// Deserialize rebuilds a Task from the output of Serialize. The input map is
// only read.
func Deserialize(data map[string]any) (Task, error) {
	var (
		t   Task
		err error
	)
	if t.ID, err = stringField(data, "id"); err != nil {
		return Task{}, err
	}
	if t.Title, err = stringField(data, "title"); err != nil {
		return Task{}, err
	}
	if t.Description, err = stringField(data, "description"); err != nil {
		return Task{}, err
	}

	rawStatus, err := stringField(data, "status")
	if err != nil {
		return Task{}, err
	}
	if t.Status, err = ParseStatus(rawStatus); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if t.Priority, err = intField(data, "priority"); err != nil {
		return Task{}, err
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return Task{}, fmt.Errorf("%w: priority %d out of range", ErrMalformed, t.Priority)
	}

	if t.CreatedAt, err = timeField(data, "created_at"); err != nil {
		return Task{}, err
	}
	if t.UpdatedAt, err = timeField(data, "updated_at"); err != nil {
		return Task{}, err
	}
	return t, nil
}

// MarshalJSON encodes the task in its serialized form.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Serialize())
}

// UnmarshalJSON decodes the serialized form.
func (t *Task) UnmarshalJSON(b []byte) error {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	decoded, err := Deserialize(data)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

func stringField(data map[string]any, key string) (string, error) {
	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrMalformed, key, raw)
	}
	return s, nil
}

func intField(data map[string]any, key string) (int, error) {
	raw, ok := data[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		// JSON numbers decode as float64.
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %q must be an integer, got %v", ErrMalformed, key, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer: %v", ErrMalformed, key, err)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer, got %T", ErrMalformed, key, raw)
	}
}

func timeField(data map[string]any, key string) (time.Time, error) {
	s, err := stringField(data, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMalformed, key, err)
	}
	return ts, nil
}
