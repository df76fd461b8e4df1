package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/tasktracker/internal/models"
	"github.com/starford/tasktracker/internal/taskservice"
	"github.com/starford/tasktracker/internal/testutil"
)

// testEnv sets up a service and router. A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*taskservice.Service, http.Handler) {
	t.Helper()
	svc := testutil.TestService(t, nil)
	return svc, NewRouter(svc, authToken != "", authToken, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) models.Task {
	t.Helper()
	var task models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode task: %v (body %s)", err, w.Body.String())
	}
	return task
}

func createTask(t *testing.T, router http.Handler, title string, priority int) models.Task {
	t.Helper()
	w := do(t, router, http.MethodPost, "/tasks", CreateTaskRequest{Title: title, Description: "d", Priority: priority})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeTask(t, w)
}

func TestCreateAndGetTask(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "Hello", 2)

	if created.Status != models.StatusOpen {
		t.Errorf("status = %q", created.Status)
	}

	w := do(t, router, http.MethodGet, "/tasks/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	if !strings.Contains(w.Body.String(), `+00:00"`) {
		t.Errorf("timestamps should carry +00:00: %s", w.Body.String())
	}
	got := decodeTask(t, w)
	if !got.Equal(created) {
		t.Errorf("get = %+v, want %+v", got, created)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks", CreateTaskRequest{Title: "  ", Priority: 9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Fields["title"] == "" || body.Fields["priority"] == "" {
		t.Errorf("fields = %v", body.Fields)
	}
}

func TestCreateTask_InvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateTask_Partial(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "A", 3)

	w := do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"status": "DONE"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeTask(t, w)
	if got.Status != models.StatusDone || got.Title != "A" || got.Priority != 3 {
		t.Errorf("patched = %+v", got)
	}
}

func TestUpdateTask_AtomicRejection(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "A", 3)

	w := do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"title": "B", "status": "BAD"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("patch status = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/tasks/"+created.ID, nil)
	got := decodeTask(t, w)
	if got.Title != "A" || got.Status != models.StatusOpen {
		t.Errorf("task modified by rejected patch: %+v", got)
	}
}

func TestUpdateTask_IfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "A", 3)

	w := do(t, router, http.MethodGet, "/tasks/"+created.ID, nil)
	etag := w.Header().Get("ETag")

	w = do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"title": "B"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("patch with etag = %d", w.Code)
	}

	w = do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"title": "C"}, "If-Match", etag)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("stale etag = %d, want 412", w.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "A", 3)

	w := do(t, router, http.MethodDelete, "/tasks/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/tasks/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListTasks_Filters(t *testing.T) {
	_, router := testEnv(t, "")
	a := createTask(t, router, "A", 1)
	b := createTask(t, router, "B", 3)
	c := createTask(t, router, "C", 5)
	do(t, router, http.MethodPatch, "/tasks/"+c.ID, map[string]any{"status": "DONE"})

	cases := map[string][]string{
		"/tasks":                            {a.ID, b.ID, c.ID},
		"/tasks?min_priority=3":             {b.ID, c.ID},
		"/tasks?status=OPEN&min_priority=3": {b.ID},
		"/tasks?status=IN_PROGRESS":         {},
	}
	for path, want := range cases {
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, w.Code)
		}
		var resp TaskListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s decode: %v", path, err)
		}
		got := make([]string, len(resp.Tasks))
		for i, task := range resp.Tasks {
			got[i] = task.ID
		}
		if strings.Join(got, ",") != strings.Join(want, ",") || resp.Total != len(want) {
			t.Errorf("%s = %v (total %d), want %v", path, got, resp.Total, want)
		}
	}
}

func TestListTasks_BadQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/tasks?min_priority=high", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad min_priority = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/tasks?status=BAD", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "A", 3)
	do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"title": "A"})
	do(t, router, http.MethodPatch, "/tasks/"+created.ID, map[string]any{"title": "B"})
	do(t, router, http.MethodDelete, "/tasks/"+created.ID, nil)

	w := do(t, router, http.MethodGet, "/history", nil)
	var resp struct {
		Events []map[string]string `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range resp.Events {
		got = append(got, e["action"])
		if e["task_id"] != created.ID {
			t.Errorf("task_id = %q", e["task_id"])
		}
	}
	if strings.Join(got, ",") != "CREATE,UPDATE,DELETE" {
		t.Errorf("actions = %v", got)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	created := createTask(t, router, "Fix login form", 1)
	createTask(t, router, "Write docs", 4)

	w := do(t, router, http.MethodGet, "/search?q=login", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != created.ID {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	for _, tc := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPatch, map[string]any{"title": "X"}},
		{http.MethodDelete, nil},
	} {
		if w := do(t, router, tc.method, "/tasks/missing", tc.body); w.Code != http.StatusNotFound {
			t.Errorf("%s missing = %d, want 404", tc.method, w.Code)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/tasks", CreateTaskRequest{Title: "auth", Priority: 1}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/tasks", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/tasks", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/tasks", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc := testutil.TestService(t, nil)

	// Minimal SSE handler stub that writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
