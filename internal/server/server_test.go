package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/mtakagi/taskboard/internal/board"
	"github.com/mtakagi/taskboard/internal/model"
	"github.com/mtakagi/taskboard/internal/storage"
	"github.com/mtakagi/taskboard/internal/store"
)

func newTestServer(t *testing.T, users map[string]string) (*echo.Echo, *board.Board) {
	t.Helper()
	backend := storage.NewCSVFile(filepath.Join(t.TempDir(), "tasks.csv"), true)
	b := board.New(store.New(), backend, board.Options{SaveWithTime: true})
	if err := b.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	e := echo.New()
	Register(e, b, users, logger)
	return e, b
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAddAndListTasks(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks",
		`{"description":"見積もり送付","status":"対応中","owner":"都筑","next_action":"返信待ち"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}
	var created model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != model.StatusInProgress || created.ID == "" {
		t.Errorf("created = %+v", created)
	}

	rec = doJSON(e, http.MethodGet, "/api/tasks?status=in_progress", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestAddTask_UnknownStatus(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"description":"x","status":"done"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddTask_EmptyDescription(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", `{"description":"  ","status":"open"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateTask(t *testing.T) {
	e, b := newTestServer(t, nil)
	task, _ := b.Add(httptest.NewRequest("GET", "/", nil).Context(), "u",
		store.AddInput{Description: "x", Status: model.StatusOpen})

	rec := doJSON(e, http.MethodPatch, "/api/tasks/"+task.ID, `{"status":"closed","notes":"済"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var updated model.Task
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != model.StatusClosed || updated.Notes != "済" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPatch, "/api/tasks/no-such-id", `{"notes":"x"}`, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCloseTasks(t *testing.T) {
	e, b := newTestServer(t, nil)
	ctx := httptest.NewRequest("GET", "/", nil).Context()
	a, _ := b.Add(ctx, "u", store.AddInput{Description: "a", Status: model.StatusInProgress})
	c, _ := b.Add(ctx, "u", store.AddInput{Description: "b", Status: model.StatusInProgress})

	rec := doJSON(e, http.MethodPost, "/api/tasks/close", `{"ids":["`+a.ID+`","`+c.ID+`"]}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var closed []model.Task
	_ = json.Unmarshal(rec.Body.Bytes(), &closed)
	if len(closed) != 2 || closed[0].Status != model.StatusClosed {
		t.Errorf("closed = %+v", closed)
	}
}

func TestCloseTasks_EmptyIDs(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec := doJSON(e, http.MethodPost, "/api/tasks/close", `{"ids":[]}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	e, b := newTestServer(t, nil)
	task, _ := b.Add(httptest.NewRequest("GET", "/", nil).Context(), "u",
		store.AddInput{Description: "x", Status: model.StatusOpen})

	rec := doJSON(e, http.MethodDelete, "/api/tasks/"+task.ID, "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := b.Get(task.ID); err == nil {
		t.Error("task still present after delete")
	}
}

func TestAuth(t *testing.T) {
	users := map[string]string{"都筑": "tokA"}
	e, _ := newTestServer(t, users)

	if rec := doJSON(e, http.MethodGet, "/api/tasks", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/tasks", "", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/tasks", "", "tokA"); rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}
}

func TestSummaryAndCandidates(t *testing.T) {
	e, b := newTestServer(t, nil)
	ctx := httptest.NewRequest("GET", "/", nil).Context()
	b.Add(ctx, "u", store.AddInput{Description: "a", Status: model.StatusInProgress, Notes: "返信待ち"})

	rec := doJSON(e, http.MethodGet, "/api/summary", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var s board.Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &s)
	if s.Total != 1 || s.WaitingReply != 1 {
		t.Errorf("summary = %+v", s)
	}

	// Just added, so not stale yet.
	rec = doJSON(e, http.MethodGet, "/api/candidates", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("candidates = %s, want []", body)
	}
}

func TestListOwners(t *testing.T) {
	e, b := newTestServer(t, nil)
	b.Add(httptest.NewRequest("GET", "/", nil).Context(), "u",
		store.AddInput{Description: "x", Status: model.StatusOpen, Owner: "都筑"})

	rec := doJSON(e, http.MethodGet, "/api/owners", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var owners []string
	if err := json.Unmarshal(rec.Body.Bytes(), &owners); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(owners) != 1 || owners[0] != "都筑" {
		t.Errorf("owners = %v", owners)
	}
}

func TestExportCSV(t *testing.T) {
	e, b := newTestServer(t, nil)
	b.Add(httptest.NewRequest("GET", "/", nil).Context(), "u",
		store.AddInput{Description: "見積もり", Status: model.StatusOpen})

	rec := doJSON(e, http.MethodGet, "/api/export?format=csv", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "見積もり") {
		t.Error("exported CSV missing record")
	}
}

func TestFilterQueryValidation(t *testing.T) {
	e, _ := newTestServer(t, nil)

	if rec := doJSON(e, http.MethodGet, "/api/tasks?status=nope", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: %d, want 400", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/tasks?updated_after=junk", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date filter: %d, want 400", rec.Code)
	}
}
