package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"projectboard/internal/appstate"
	"projectboard/internal/client"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/search"
)

var seed = []models.Task{
	{ID: "t-1", Title: "Write docs", Status: models.StatusBacklog, Position: 1, Priority: models.PriorityLow},
	{ID: "t-2", Title: "Fix login", Status: models.StatusBacklog, Position: 2, Priority: models.PriorityHigh},
	{ID: "t-3", Title: "Review PR", Status: models.StatusTodo, Position: 0, Priority: models.PriorityMedium},
}

type stubAPI struct {
	failStatus bool
	tasks      []models.Task // defaults to seed
	listCalls  atomic.Int32
}

func (s *stubAPI) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		s.listCalls.Add(1)
		tasks := s.tasks
		if tasks == nil {
			tasks = seed
		}
		_ = json.NewEncoder(w).Encode(client.TaskPage{Tasks: tasks, Count: len(tasks), Total: int64(len(tasks))})
	})
	mux.HandleFunc("PATCH /api/tasks/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if s.failStatus {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to update status"}`))
			return
		}
		var body struct {
			Status   models.TaskStatus `json:"status"`
			Position int               `json:"position"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(models.Task{ID: r.PathValue("id"), Status: body.Status, Position: body.Position})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newModel(t *testing.T, api *stubAPI) *Model {
	srv := api.server(t)
	q := client.NewQueries(client.New(srv.URL), 0)
	m := New(context.Background(), q, appstate.NewStore(appstate.Initial()), nil)
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func TestModel_LoadsBoard(t *testing.T) {
	m := newModel(t, &stubAPI{})
	run(t, m, m.loadTasks())

	require.Equal(t, 3, m.Board().Len())
	require.False(t, m.loading)

	view := m.View()
	require.Contains(t, view, "Backlog 2")
	require.Contains(t, view, "In Progress 0")
	require.Contains(t, view, "Write docs")
}

func TestModel_LoadFailureShowsEmptyBoard(t *testing.T) {
	q := client.NewQueries(client.New("http://127.0.0.1:1"), 0)
	m := New(context.Background(), q, appstate.NewStore(appstate.Initial()), nil)
	run(t, m, m.loadTasks())

	require.Zero(t, m.Board().Len())
	require.True(t, m.status.err)
	require.Contains(t, m.status.text, "failed to load tasks.")
}

func TestModel_CursorNavigation(t *testing.T) {
	m := newModel(t, &stubAPI{})
	run(t, m, m.loadTasks())

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	got, ok := m.selected()
	require.True(t, ok)
	require.Equal(t, "t-2", got.ID)

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, m.row, "cursor stops at the last card")

	m.Update(runes("l"))
	got, _ = m.selected()
	require.Equal(t, "t-3", got.ID)

	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	require.Zero(t, m.col)
}

func TestModel_MoveRightSucceeds(t *testing.T) {
	api := &stubAPI{}
	m := newModel(t, api)
	run(t, m, m.loadTasks())

	_, cmd := m.Update(runes("L"))
	require.Equal(t, 1, m.col, "cursor follows the card")

	msg := cmd()
	moved, _ := m.Board().Task("t-1")
	require.Equal(t, models.StatusTodo, moved.Status)
	require.Equal(t, 1, moved.Position)

	_, reload := m.Update(msg)
	require.NotNil(t, reload)
	require.False(t, m.status.err)
	require.Equal(t, "task status updated", m.status.text)
}

func TestModel_MoveFailureReverts(t *testing.T) {
	m := newModel(t, &stubAPI{failStatus: true})
	run(t, m, m.loadTasks())

	_, cmd := m.Update(runes("L"))
	_, follow := m.Update(cmd())
	require.Nil(t, follow)

	got, _ := m.Board().Task("t-1")
	require.Equal(t, models.StatusBacklog, got.Status)
	require.Equal(t, 1, got.Position)
	require.True(t, m.status.err)
	require.Equal(t, "failed to update task status. Failed to update status", m.status.text)
}

func TestModel_MoveWithinColumn(t *testing.T) {
	m := newModel(t, &stubAPI{})
	run(t, m, m.loadTasks())

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(runes("K"))
	cmd()

	col := m.Board().Column(models.StatusBacklog)
	require.Equal(t, "t-2", col[0].ID)
	require.Zero(t, m.row)

	_, cmd = m.Update(runes("K"))
	require.Nil(t, cmd, "top card cannot move up")
}

func TestModel_MoveToTopOverCardAtZero(t *testing.T) {
	m := newModel(t, &stubAPI{tasks: []models.Task{
		{ID: "t-2", Title: "Second", Status: models.StatusBacklog, Position: 1},
		{ID: "t-9", Title: "First", Status: models.StatusBacklog, Position: 0},
	}})
	run(t, m, m.loadTasks())

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	got, _ := m.selected()
	require.Equal(t, "t-2", got.ID)

	_, cmd := m.Update(runes("K"))
	require.NotNil(t, cmd)
	require.Zero(t, m.row)
	require.Nil(t, cmd().(moveDoneMsg).err)
	got, _ = m.selected()
	require.Equal(t, "t-2", got.ID, "cursor stays on the moved card")

	col := m.Board().Column(models.StatusBacklog)
	require.Equal(t, []string{"t-2", "t-9"}, []string{col[0].ID, col[1].ID})
	require.Equal(t, []int{0, 1}, []int{col[0].Position, col[1].Position})

	// and back down again
	_, cmd = m.Update(runes("J"))
	require.NotNil(t, cmd)
	require.Nil(t, cmd().(moveDoneMsg).err)
	col = m.Board().Column(models.StatusBacklog)
	require.Equal(t, []string{"t-9", "t-2"}, []string{col[0].ID, col[1].ID})
	got, _ = m.selected()
	require.Equal(t, "t-2", got.ID)
}

func TestModel_SelectOpensSidebar(t *testing.T) {
	m := newModel(t, &stubAPI{})
	run(t, m, m.loadTasks())
	m.store.Dispatch(appstate.SetSidebar(false))

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state := m.store.State()
	require.Equal(t, "t-1", state.SelectedTaskID)
	require.True(t, state.SidebarOpen)
	require.Contains(t, m.View(), "priority: low")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Empty(t, m.store.State().SelectedTaskID)
}

func TestModel_TabsAndTheme(t *testing.T) {
	m := newModel(t, &stubAPI{})

	m.Update(runes("t"))
	require.Equal(t, appstate.ThemeLight, m.theme)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, appstate.TabTasks, m.store.State().ActiveTab)
	require.Contains(t, m.View(), "No task selected")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, appstate.TabProjects, m.store.State().ActiveTab)
	require.NotNil(t, cmd, "entering projects loads them")
}

func TestModel_Search(t *testing.T) {
	m := newModel(t, &stubAPI{})

	m.Update(runes("/"))
	require.True(t, m.searching)
	require.Equal(t, appstate.TabSearch, m.store.State().ActiveTab)

	// q is typed into the box instead of quitting
	m.Update(runes("q"))
	require.Equal(t, "q", m.input.Value())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.False(t, m.searching)

	m.Update(searchDoneMsg{results: []search.Result{search.TaskResult(&seed[2])}})
	view := m.View()
	require.Contains(t, view, "Review PR")
	require.Contains(t, view, "/tasks?taskId=t-3")
}

func TestModel_EventReloadsTasks(t *testing.T) {
	api := &stubAPI{}
	srv := api.server(t)
	q := client.NewQueries(client.New(srv.URL), 0)
	events := make(chan realtime.Event, 1)
	m := New(context.Background(), q, appstate.NewStore(appstate.Initial()), events)

	run(t, m, m.loadTasks())
	require.True(t, q.Cached(client.TaskQuery{Limit: boardLimit, Ascending: true}))

	events <- realtime.Event{Type: realtime.Updated, Entity: "task", ID: "t-1"}
	msg := m.listen()()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	require.False(t, q.Cached(client.TaskQuery{Limit: boardLimit, Ascending: true}))
}

func TestModel_HelloAfterGapReloads(t *testing.T) {
	m := newModel(t, &stubAPI{})
	run(t, m, m.loadTasks())
	tq := client.TaskQuery{Limit: boardLimit, Ascending: true}

	_, cmd := m.Update(eventMsg{Type: realtime.Hello, Version: 4})
	require.Nil(t, cmd, "first hello only records the version")
	require.True(t, m.queries.Cached(tq))

	m.Update(eventMsg{Type: realtime.Hello, Version: 4})
	require.True(t, m.queries.Cached(tq), "same version, nothing missed")

	_, cmd = m.Update(eventMsg{Type: realtime.Hello, Version: 9})
	require.NotNil(t, cmd)
	require.False(t, m.queries.Cached(tq))
	require.Equal(t, uint64(9), m.version)
}

func TestColumnLabel(t *testing.T) {
	require.Equal(t, "In Progress", ColumnLabel(models.StatusInProgress))
	require.Equal(t, "To Do", ColumnLabel(models.StatusTodo))
	require.Equal(t, "Qa", ColumnLabel(models.StatusQA))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	got := truncate("a much longer title", 8)
	require.True(t, strings.HasSuffix(got, "…"))
	require.Len(t, []rune(got), 8)
}
