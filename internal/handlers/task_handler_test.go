package handlers

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"projectboard/internal/models"
	"projectboard/internal/realtime"
	dbtest "projectboard/internal/testutil"
)

func createTask(e *testEnv, token string, body map[string]any) models.Task {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/tasks", token, body)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Task](e.t, w)
}

func TestCreateTask_Success(t *testing.T) {
	e := newTestEnv(t)
	dbtest.SeedUser(t, e.db, "u-2", "Bob")
	token := e.token("u-1")

	created := createTask(e, token, map[string]any{
		"title":       "Test Task",
		"description": "Desc",
		"assigneeIds": []string{"u-2"},
		"startDate":   "2025-01-01",
		"dueDate":     "3 Jan 2025",
		"priority":    "high",
		"tags":        []map[string]string{{"text": "api", "color": "blue"}},
	})
	require.Equal(t, "u-1", created.CreatorID)
	require.Equal(t, models.StatusTodo, created.Status)
	require.Equal(t, models.PriorityHigh, created.Priority)
	require.Len(t, created.Assignees, 1)
	require.Equal(t, "u-2", created.Assignees[0].ID)
	require.Equal(t, dbtest.Date(2025, 1, 3), created.DueDate.UTC())

	w := e.do(http.MethodGet, "/api/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Task](t, w)
	require.Len(t, got.Tags, 1)
	require.Equal(t, "api", got.Tags[0].Text)
}

func TestCreateTask_Invalid(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"description": "x"}},
		{"blank title", map[string]any{"title": "   "}},
		{"bad status", map[string]any{"title": "x", "status": "done-ish"}},
		{"bad priority", map[string]any{"title": "x", "priority": "whenever"}},
		{"bad date", map[string]any{"title": "x", "dueDate": "tomorrow"}},
		{"unknown project", map[string]any{"title": "x", "projectId": "missing"}},
		{"unknown assignee", map[string]any{"title": "x", "assigneeIds": []string{"ghost"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/tasks", token, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := e.do(http.MethodPost, "/api/tasks", "", map[string]any{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateTask(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	task := createTask(e, token, map[string]any{"title": "Draft", "dueDate": "2025-02-01"})

	w := e.do(http.MethodPut, "/api/tasks/"+task.ID, token, map[string]any{
		"title":   "Final",
		"status":  "in-review",
		"dueDate": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Task](t, w)
	require.Equal(t, "Final", got.Title)
	require.Equal(t, models.StatusInReview, got.Status)
	require.Nil(t, got.DueDate)

	w = e.do(http.MethodPut, "/api/tasks/missing", token, map[string]any{"title": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTaskStatus(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	a := createTask(e, token, map[string]any{"title": "A"})
	b := createTask(e, token, map[string]any{"title": "B", "status": "in-progress"})

	rec := &recordingClient{}
	e.h.Hub().Register("watcher", rec)

	w := e.do(http.MethodPatch, "/api/tasks/"+a.ID+"/status", token, map[string]any{"status": "in-progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[models.Task](t, w)
	require.Equal(t, models.StatusInProgress, moved.Status)
	require.Equal(t, b.Position+1, moved.Position)

	evts := rec.events(t)
	require.Len(t, evts, 1)
	evt := evts[0]
	require.Equal(t, realtime.StatusChanged, evt.Type)
	require.Equal(t, a.ID, evt.ID)
	require.Equal(t, "u-1", evt.ActorID)

	require.Equal(t, 1.0, testutil.ToFloat64(
		e.h.Metrics().StatusTransitions.WithLabelValues("to-do", "in-progress")))

	w = e.do(http.MethodPatch, "/api/tasks/"+a.ID+"/status", token, map[string]any{"status": "in-progress", "position": 0})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, decode[models.Task](t, w).Position)

	w = e.do(http.MethodPatch, "/api/tasks/"+a.ID+"/status", token, map[string]any{"status": "finished"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPatch, "/api/tasks/missing/status", token, map[string]any{"status": "qa"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTasks_FiltersAndPages(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	for _, title := range []string{"one", "two", "three"} {
		createTask(e, token, map[string]any{"title": title})
	}
	createTask(e, e.token("u-2"), map[string]any{"title": "four", "status": "qa"})

	w := e.do(http.MethodGet, "/api/tasks?limit=2&page=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[TaskListResponse](t, w)
	require.Equal(t, int64(4), page.Total)
	require.Equal(t, 2, page.Count)

	w = e.do(http.MethodGet, "/api/tasks?status=qa", token, nil)
	require.Equal(t, int64(1), decode[TaskListResponse](t, w).Total)

	w = e.do(http.MethodGet, "/api/tasks?creatorId=u-1", token, nil)
	require.Equal(t, int64(3), decode[TaskListResponse](t, w).Total)

	w = e.do(http.MethodGet, "/api/tasks?status=nope", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTask(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	task := createTask(e, token, map[string]any{"title": "Gone soon"})

	w := e.do(http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubtasks(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	task := createTask(e, token, map[string]any{"title": "Parent"})

	w := e.do(http.MethodPost, "/api/tasks/"+task.ID+"/subtasks", token, map[string]any{"title": "Step 1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[models.Subtask](t, w)
	require.False(t, sub.Completed)

	w = e.do(http.MethodPut, "/api/tasks/"+task.ID+"/subtasks/"+sub.ID, token, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[models.Subtask](t, w).Completed)

	w = e.do(http.MethodGet, "/api/tasks/"+task.ID+"/subtasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Step 1")
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)
	dbtest.SeedUser(t, e.db, "u-2", "Bob")
	token := e.token("u-1")
	createTask(e, token, map[string]any{"title": "a", "assigneeIds": []string{"u-2"}})
	createTask(e, token, map[string]any{"title": "b", "status": "completed", "assigneeIds": []string{"u-2"}})
	createTask(e, token, map[string]any{"title": "c", "status": "qa", "dueDate": "2000-01-01"})

	w := e.do(http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[DashboardStats](t, w)
	require.Equal(t, int64(3), stats.TotalTasks)
	require.Equal(t, int64(1), stats.Overdue)
	require.Equal(t, int64(3), stats.ByPriority[models.PriorityMedium])

	// cached stats are dropped by the next write
	createTask(e, token, map[string]any{"title": "d"})
	w = e.do(http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, int64(4), decode[DashboardStats](t, w).TotalTasks)

	w = e.do(http.MethodGet, "/api/stats/u-2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	us := decode[UserStats](t, w)
	require.Equal(t, int64(2), us.Total)
	require.Equal(t, int64(1), us.Todo)
	require.Equal(t, int64(1), us.Done)
}
