package api

import (
	"github.com/starford/tasktracker/internal/index"
	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/taskstore"
)

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title" example:"Write tests" validate:"required"`
	Description string `json:"description" example:"Cover the store"`
	Priority    int    `json:"priority" example:"2" validate:"required"`
}

// UpdateTaskRequest is the request body for a partial update. Omitted or null
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty" example:"Write more tests"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" example:"IN_PROGRESS"`
	Priority    *int    `json:"priority,omitempty" example:"1"`
}

// Patch converts the request into a store patch.
func (r UpdateTaskRequest) Patch() taskstore.Patch {
	p := taskstore.Patch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
	}
	if r.Status != nil {
		st := models.Status(*r.Status)
		p.Status = &st
	}
	return p
}

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// HistoryResponse wraps the audit log.
type HistoryResponse struct {
	Events []models.HistoryEvent `json:"events" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
