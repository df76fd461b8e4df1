// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes task tracker tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/taskservice"
	"github.com/starford/tasktracker/internal/taskstore"
)

const taskFormatURI = "tasktracker://task-format"

// Server wraps the MCP server with task tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all task tools registered.
func New(svc *taskservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Task Tracker",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	statuses := make([]string, 0, len(models.Statuses()))
	for _, st := range models.Statuses() {
		statuses = append(statuses, string(st))
	}

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task. It starts in status OPEN. "+
			"Read the contract first via get_task_contract or the "+taskFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Non-blank title")),
		mcp.WithString("description", mcp.Description("Free-form description")),
		mcp.WithNumber("priority", mcp.Required(), mcp.Description("Integer from 1 (highest) to 5 (lowest)")),
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a task by id, together with its etag."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.getTask)

	s.mcp.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Partially update a task. Only supplied fields change; "+
			"if any supplied field is invalid nothing changes."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Enum(statuses...), mcp.Description("New status")),
		mcp.WithNumber("priority", mcp.Description("New priority, 1 to 5")),
		mcp.WithString("if_match", mcp.Description("Etag from get_task; the update fails if the task changed since")),
	), s.updateTask)

	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.deleteTask)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks in creation order."),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("filter_tasks",
		mcp.WithDescription("List tasks matching an exact status and/or a minimum priority value."),
		mcp.WithString("status", mcp.Enum(statuses...), mcp.Description("Exact status to match")),
		mcp.WithNumber("min_priority", mcp.Description("Include tasks whose priority value is at least this")),
	), s.filterTasks)

	s.mcp.AddTool(mcp.NewTool("task_history",
		mcp.WithDescription("Return the audit log of committed task mutations, oldest first."),
	), s.taskHistory)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search through task titles and descriptions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("get_task_contract",
		mcp.WithDescription("Returns the task format contract. "+
			"Call this before creating or updating tasks."),
	), s.getTaskContract)

	s.mcp.AddResource(
		mcp.NewResource(taskFormatURI, "Task Format Contract",
			mcp.WithResourceDescription("Fields, value ranges and update rules for tasks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type taskWithETag struct {
	Task models.Task `json:"task"`
	ETag string      `json:"etag"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// intArg reads an optional integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok {
		if n, isInt := raw.(int); isInt {
			return &n, nil
		}
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	n := int(f)
	return &n, nil
}

func stringArg(args map[string]any, key string) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	priority, err := intArg(req.GetArguments(), "priority")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if priority == nil {
		return mcp.NewToolResultError("required argument \"priority\" not found"), nil
	}

	task, err := s.svc.CreateTask(ctx, title, req.GetString("description", ""), *priority)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(taskWithETag{Task: task, ETag: taskservice.ETag(task)})
}

func (s *Server) getTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(taskWithETag{Task: task, ETag: taskservice.ETag(task)})
}

func (s *Server) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()

	var p taskstore.Patch
	if p.Title, err = stringArg(args, "title"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p.Description, err = stringArg(args, "description"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := stringArg(args, "status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != nil {
		st := models.Status(*status)
		p.Status = &st
	}
	if p.Priority, err = intArg(args, "priority"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task, err := s.svc.UpdateTask(ctx, id, p, req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(taskWithETag{Task: task, ETag: taskservice.ETag(task)})
}

func (s *Server) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteTask(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) listTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.svc.ListTasks(ctx)
	if tasks == nil {
		tasks = []models.Task{}
	}
	return jsonResult(tasks)
}

func (s *Server) filterTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var f taskstore.Filter
	status, err := stringArg(args, "status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != nil {
		st := models.Status(*status)
		f.Status = &st
	}
	if f.MinPriority, err = intArg(args, "min_priority"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tasks, err := s.svc.FilterTasks(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return jsonResult(tasks)
}

func (s *Server) taskHistory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events := s.svc.History(ctx)
	if events == nil {
		events = []models.HistoryEvent{}
	}
	return jsonResult(events)
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching tasks"), nil
	}
	return jsonResult(results)
}

func (s *Server) getTaskContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      taskFormatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
