package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"projectboard/internal/auth"
	"projectboard/internal/cache"
	"projectboard/internal/client"
	"projectboard/internal/config"
	"projectboard/internal/handlers"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/routes"
	"projectboard/internal/search"
	"projectboard/internal/testutil"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := auth.NewManager(config.Default().Auth)
	h := handlers.New(handlers.Deps{DB: testutil.MustDB(t), Tokens: tokens})
	srv := httptest.NewServer(routes.SetupRoutes(routes.Options{Handler: h, Tokens: tokens}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFailureMessage(t *testing.T) {
	err := &client.APIError{Status: http.StatusNotFound, Message: "Task not found"}
	require.Equal(t, "failed to update task status. Task not found", client.FailureMessage("update task status", err))

	require.Equal(t, "failed to load tasks. Something went wrong, please try again",
		client.FailureMessage("load tasks", errors.New("dial tcp: connection refused")))

	require.Equal(t, "failed to load tasks. Something went wrong, please try again",
		client.FailureMessage("load tasks", &client.APIError{Status: http.StatusBadGateway}))
}

func TestClient_AgainstServer(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := client.New(srv.URL)

	_, err := c.ListTasks(ctx, client.TaskQuery{})
	require.True(t, client.IsStatus(err, http.StatusUnauthorized))

	_, err = c.Register(ctx, "Alice", "alice@example.com", "password1", "password1")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())

	me, err := c.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alice", me.Name)

	task, err := c.CreateTask(ctx, client.NewTask{Title: "Write client", DueDate: "2025-05-01"})
	require.NoError(t, err)
	require.Equal(t, models.StatusTodo, task.Status)

	moved, err := c.UpdateTaskStatus(ctx, task.ID, models.StatusInProgress, 0)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, moved.Status)

	page, err := c.ListTasks(ctx, client.TaskQuery{Status: models.StatusInProgress})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	_, err = c.UpdateTaskStatus(ctx, "missing", models.StatusQA, 0)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "failed to update task status. Task not found", client.FailureMessage("update task status", err))

	_, err = c.AddComment(ctx, task.ID, "looks good")
	require.NoError(t, err)
	comments, err := c.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	res, err := c.Search(ctx, search.Request{Query: "client"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, task.ID, res.Results[0].ID)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	_, err = c.GetTask(ctx, task.ID)
	require.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_Subscribe(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.New(srv.URL)
	_, err := c.Register(ctx, "Alice", "alice@example.com", "password1", "password1")
	require.NoError(t, err)

	events := make(chan realtime.Event, 4)
	errc := make(chan error, 1)
	go func() { errc <- c.Subscribe(ctx, func(evt realtime.Event) { events <- evt }) }()

	var hello realtime.Event
	select {
	case hello = <-events:
	case <-time.After(3 * time.Second):
		t.Fatal("no hello event")
	}
	require.Equal(t, realtime.Hello, hello.Type)
	require.Empty(t, client.TagsForEvent(hello))

	_, err = c.CreateTask(ctx, client.NewTask{Title: "ping"})
	require.NoError(t, err)
	var got realtime.Event
	select {
	case got = <-events:
	case <-time.After(3 * time.Second):
		t.Fatal("no task event")
	}
	require.Equal(t, "task", got.Entity)
	require.Equal(t, realtime.Created, got.Type)
	require.Greater(t, got.Version, hello.Version)

	cancel()
	require.NoError(t, <-errc)
}

func TestQueries_CacheAndInvalidate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"projects":[{"id":"p-1","name":"Web","key":"WEB"}],"count":1}`))
	}))
	defer srv.Close()

	q := client.NewQueries(client.New(srv.URL), 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ps, err := q.Projects(ctx)
		require.NoError(t, err)
		require.Len(t, ps, 1)
	}
	require.Equal(t, int32(1), hits.Load())

	require.Equal(t, 0, q.Invalidate(cache.TagTasks))
	_, _ = q.Projects(ctx)
	require.Equal(t, int32(1), hits.Load())

	require.Equal(t, 1, q.Apply(realtime.Event{Entity: "project", ID: "p-1"}))
	_, _ = q.Projects(ctx)
	require.Equal(t, int32(2), hits.Load())
}

func TestQueries_InvalidateDuringFetchRefetches(t *testing.T) {
	var hits atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n == 1 {
			entered <- struct{}{}
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"projects":[{"id":"p-1","name":"v%d","key":"WEB"}],"count":1}`, n)
	}))
	defer srv.Close()

	q := client.NewQueries(client.New(srv.URL), time.Minute)
	ctx := context.Background()

	done := make(chan []models.Project, 1)
	go func() {
		ps, _ := q.Projects(ctx)
		done <- ps
	}()

	<-entered
	q.Invalidate(cache.TagProjects)
	close(release)

	first := <-done
	require.Len(t, first, 1)
	require.Equal(t, "v1", first[0].Name)

	ps, err := q.Projects(ctx)
	require.NoError(t, err)
	require.Equal(t, "v2", ps[0].Name)
	require.Equal(t, int32(2), hits.Load())

	_, _ = q.Projects(ctx)
	require.Equal(t, int32(2), hits.Load(), "the fresh result is cached")
}

func TestQueries_ErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to fetch teams"}`))
	}))
	defer srv.Close()

	q := client.NewQueries(client.New(srv.URL), time.Minute)
	_, err := q.Teams(context.Background())
	require.Error(t, err)
	_, err = q.Teams(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, "failed to load teams. Failed to fetch teams", client.FailureMessage("load teams", err))
}

func TestTagsForEvent(t *testing.T) {
	require.Equal(t, []string{cache.TagTasks, "task:t-1"}, client.TagsForEvent(realtime.Event{Entity: "task", ID: "t-1"}))
	require.Contains(t, client.TagsForEvent(realtime.Event{Entity: "project", ID: "p-1"}), cache.TagTasks)
	require.Nil(t, client.TagsForEvent(realtime.Event{Entity: "unknown"}))
}
