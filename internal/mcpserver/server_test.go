package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testutil.TestService(t, nil))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "create_task":
		result, err = srv.createTask(ctx, req)
	case "get_task":
		result, err = srv.getTask(ctx, req)
	case "update_task":
		result, err = srv.updateTask(ctx, req)
	case "delete_task":
		result, err = srv.deleteTask(ctx, req)
	case "list_tasks":
		result, err = srv.listTasks(ctx, req)
	case "filter_tasks":
		result, err = srv.filterTasks(ctx, req)
	case "task_history":
		result, err = srv.taskHistory(ctx, req)
	case "search_tasks":
		result, err = srv.searchTasks(ctx, req)
	case "get_task_contract":
		result, err = srv.getTaskContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeTaskResult(t *testing.T, r *mcp.CallToolResult) taskWithETag {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	var out taskWithETag
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	return out
}

func decodeTasks(t *testing.T, r *mcp.CallToolResult) []models.Task {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	var out []models.Task
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	return out
}

func TestCreateAndGetTask(t *testing.T) {
	srv := testServer(t)

	created := decodeTaskResult(t, callTool(t, srv, "create_task", map[string]interface{}{
		"title":       "Write tests",
		"description": "for the MCP tools",
		"priority":    float64(2),
	}))
	if created.Task.Status != models.StatusOpen || created.ETag == "" {
		t.Errorf("created = %+v", created)
	}

	got := decodeTaskResult(t, callTool(t, srv, "get_task", map[string]interface{}{"id": created.Task.ID}))
	if !got.Task.Equal(created.Task) || got.ETag != created.ETag {
		t.Errorf("get = %+v, want %+v", got, created)
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	srv := testServer(t)

	cases := map[string]map[string]interface{}{
		"blank title":      {"title": "   ", "priority": float64(1)},
		"missing priority": {"title": "x"},
		"fractional":       {"title": "x", "priority": 2.5},
		"out of range":     {"title": "x", "priority": float64(6)},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "create_task", args); !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
	if tasks := decodeTasks(t, callTool(t, srv, "list_tasks", nil)); len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(tasks))
	}
}

func TestUpdateTask_PartialAndAtomic(t *testing.T) {
	srv := testServer(t)
	created := decodeTaskResult(t, callTool(t, srv, "create_task", map[string]interface{}{
		"title": "A", "priority": float64(3),
	}))

	r := callTool(t, srv, "update_task", map[string]interface{}{
		"id": created.Task.ID, "title": "B", "status": "BOGUS",
	})
	if !r.IsError || !strings.Contains(resultText(r), "status") {
		t.Fatalf("expected status validation error, got %q", resultText(r))
	}

	updated := decodeTaskResult(t, callTool(t, srv, "update_task", map[string]interface{}{
		"id": created.Task.ID, "status": "DONE",
	}))
	if updated.Task.Title != "A" || updated.Task.Status != models.StatusDone {
		t.Errorf("updated = %+v", updated.Task)
	}
}

func TestUpdateTask_IfMatch(t *testing.T) {
	srv := testServer(t)
	created := decodeTaskResult(t, callTool(t, srv, "create_task", map[string]interface{}{
		"title": "A", "priority": float64(3),
	}))

	_ = decodeTaskResult(t, callTool(t, srv, "update_task", map[string]interface{}{
		"id": created.Task.ID, "title": "B", "if_match": created.ETag,
	}))

	r := callTool(t, srv, "update_task", map[string]interface{}{
		"id": created.Task.ID, "title": "C", "if_match": created.ETag,
	})
	if !r.IsError {
		t.Error("stale etag should fail")
	}
}

func TestDeleteTask(t *testing.T) {
	srv := testServer(t)
	created := decodeTaskResult(t, callTool(t, srv, "create_task", map[string]interface{}{
		"title": "A", "priority": float64(3),
	}))

	r := callTool(t, srv, "delete_task", map[string]interface{}{"id": created.Task.ID})
	if resultText(r) != "deleted: "+created.Task.ID {
		t.Errorf("delete = %q", resultText(r))
	}
	if r := callTool(t, srv, "get_task", map[string]interface{}{"id": created.Task.ID}); !r.IsError {
		t.Error("expected error for deleted task")
	}
	if r := callTool(t, srv, "delete_task", map[string]interface{}{"id": created.Task.ID}); !r.IsError {
		t.Error("second delete should fail")
	}
}

func TestFilterTasks(t *testing.T) {
	srv := testServer(t)
	for i, title := range []string{"low", "mid", "high"} {
		callTool(t, srv, "create_task", map[string]interface{}{"title": title, "priority": float64(2*i + 1)})
	}

	tasks := decodeTasks(t, callTool(t, srv, "filter_tasks", map[string]interface{}{"min_priority": float64(3)}))
	if len(tasks) != 2 || tasks[0].Title != "mid" || tasks[1].Title != "high" {
		t.Errorf("filtered = %+v", tasks)
	}

	tasks = decodeTasks(t, callTool(t, srv, "filter_tasks", map[string]interface{}{"status": "DONE"}))
	if len(tasks) != 0 {
		t.Errorf("DONE tasks = %d", len(tasks))
	}

	if r := callTool(t, srv, "filter_tasks", map[string]interface{}{"status": "LATER"}); !r.IsError {
		t.Error("unknown status should fail")
	}
}

func TestTaskHistory(t *testing.T) {
	srv := testServer(t)
	created := decodeTaskResult(t, callTool(t, srv, "create_task", map[string]interface{}{
		"title": "A", "priority": float64(3),
	}))
	callTool(t, srv, "update_task", map[string]interface{}{"id": created.Task.ID, "priority": float64(3)})
	callTool(t, srv, "delete_task", map[string]interface{}{"id": created.Task.ID})

	var events []map[string]string
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "task_history", nil))), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0]["action"] != "CREATE" || events[1]["action"] != "DELETE" {
		t.Errorf("history = %v", events)
	}
}

func TestSearchTasks(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_task", map[string]interface{}{"title": "Deploy gateway", "priority": float64(1)})

	r := callTool(t, srv, "search_tasks", map[string]interface{}{"query": "gateway"})
	if !strings.Contains(resultText(r), "Deploy gateway") {
		t.Errorf("search = %q", resultText(r))
	}

	r = callTool(t, srv, "search_tasks", map[string]interface{}{"query": "nothing-like-this"})
	if resultText(r) != "no matching tasks" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestGetTaskContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_task_contract", nil))
	for _, want := range []string{"OPEN", "IN_PROGRESS", "DONE", "priority"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}

func TestReadTaskFormatResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readTaskFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != taskFormatURI || tc.Text != TaskFormatContract {
		t.Errorf("resource = %+v", contents[0])
	}
}
