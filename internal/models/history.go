package models

import (
	"encoding/json"
	"time"
)

// Action names a committed mutation recorded in the history log.
type Action string

// History actions.
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// HistoryEvent is one immutable audit-log entry.
type HistoryEvent struct {
	Action Action
	TaskID string
	At     time.Time
}

// Serialize returns the flat {action, task_id, at} form of the event.
func (e HistoryEvent) Serialize() map[string]any {
	return map[string]any{
		"action":  string(e.Action),
		"task_id": e.TaskID,
		"at":      FormatTime(e.At),
	}
}

// MarshalJSON encodes the event in its serialized form.
func (e HistoryEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Serialize())
}
