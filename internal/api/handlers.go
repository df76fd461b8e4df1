package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/taskservice"
	"github.com/starford/tasktracker/internal/taskstore"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *taskservice.Service) *Handler {
	return &Handler{svc: svc}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List tasks, optionally filtered
//	@Tags			tasks
//	@Produce		json
//	@Param			status			query		string	false	"Exact status"	Enums(OPEN, IN_PROGRESS, DONE)
//	@Param			min_priority	query		int		false	"Include priority >= value"
//	@Success		200				{object}	TaskListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f taskstore.Filter
	if raw := q.Get("status"); raw != "" {
		st := models.Status(raw)
		f.Status = &st
	}
	if raw := q.Get("min_priority"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("min_priority must be an integer"))
			return
		}
		f.MinPriority = &n
	}

	tasks, err := h.svc.FilterTasks(r.Context(), f)
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: nonNil(tasks), Total: len(tasks)})
}

// GetTask handles GET /api/tasks/{id}.
//
//	@Summary		Get a single task
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path		string	true	"Task id"
//	@Success		200	{object}	models.Task
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get task", err)
		return
	}
	w.Header().Set("ETag", `"`+taskservice.ETag(task)+`"`)
	writeJSON(w, http.StatusOK, task)
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a new task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to create"
//	@Success		201		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	task, err := h.svc.CreateTask(r.Context(), req.Title, req.Description, req.Priority)
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	w.Header().Set("ETag", `"`+taskservice.ETag(task)+`"`)
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Partially update a task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Task id"
//	@Param			If-Match	header		string				false	"ETag for optimistic concurrency"
//	@Param			body		body		UpdateTaskRequest	true	"Fields to change"
//	@Success		200			{object}	models.Task
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		412			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	task, err := h.svc.UpdateTask(r.Context(), chi.URLParam(r, "id"), req.Patch(), ifMatch)
	if err != nil {
		writeError(w, "update task", err)
		return
	}
	w.Header().Set("ETag", `"`+taskservice.ETag(task)+`"`)
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
//
//	@Summary		Delete a task
//	@Tags			tasks
//	@Param			id	path	string	true	"Task id"
//	@Success		204	"Task deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/history.
//
//	@Summary		Audit log of committed mutations
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{Events: nonNil(h.svc.History(r.Context()))})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across task titles and descriptions
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if errors.Is(err, taskservice.ErrSearchUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}
