// Package tui is the terminal kanban client.
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"projectboard/internal/appstate"
	"projectboard/internal/board"
	"projectboard/internal/cache"
	"projectboard/internal/client"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/search"
)

// boardLimit is the largest page the server hands out.
const boardLimit = 100

type (
	tasksLoadedMsg struct {
		tasks []models.Task
		err   error
	}
	projectsLoadedMsg struct {
		projects []models.Project
		err      error
	}
	teamsLoadedMsg struct {
		teams []models.Team
		err   error
	}
	searchDoneMsg struct {
		results []search.Result
		err     error
	}
	moveDoneMsg struct{ err error }
	eventMsg    realtime.Event
)

type notice struct {
	text string
	err  bool
}

// notices collects board outcomes until the next update drains them.
type notices struct {
	mu    sync.Mutex
	items []notice
}

func (n *notices) Success(msg string) { n.push(notice{text: msg}) }
func (n *notices) Error(msg string)   { n.push(notice{text: msg, err: true}) }

func (n *notices) push(x notice) {
	n.mu.Lock()
	n.items = append(n.items, x)
	n.mu.Unlock()
}

func (n *notices) drain() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	return out
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	queries *client.Queries
	board   *board.Board
	store   *appstate.Store
	notes   *notices
	events  <-chan realtime.Event

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	styles  styles
	theme   appstate.Theme

	width, height int
	col, row      int
	loading       bool
	searching     bool

	// version is the last realtime version seen.
	version uint64

	status    notice
	projects  []models.Project
	teams     []models.Team
	results   []search.Result
	searchErr string
}

// New builds the model. events may be nil when live updates are off.
func New(ctx context.Context, queries *client.Queries, store *appstate.Store, events <-chan realtime.Event) *Model {
	n := &notices{}
	in := textinput.New()
	in.Placeholder = "search tasks and projects"
	in.CharLimit = 120
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:     ctx,
		queries: queries,
		board:   board.New(queries, n, queries),
		store:   store,
		notes:   n,
		events:  events,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		input:   in,
		loading: true,
	}
	m.restyle()
	return m
}

func (m *Model) restyle() {
	m.theme = m.store.State().Theme
	m.styles = newStyles(ThemeFor(m.theme))
}

// Board exposes the local read model.
func (m *Model) Board() *board.Board { return m.board }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadTasks(), m.spinner.Tick, m.listen())
}

func (m *Model) loadTasks() tea.Cmd {
	ctx, q := m.ctx, m.queries
	return func() tea.Msg {
		page, err := q.Tasks(ctx, client.TaskQuery{Limit: boardLimit, Ascending: true})
		if err != nil {
			return tasksLoadedMsg{err: err}
		}
		return tasksLoadedMsg{tasks: page.Tasks}
	}
}

func (m *Model) loadProjects() tea.Cmd {
	ctx, q := m.ctx, m.queries
	return func() tea.Msg {
		projects, err := q.Projects(ctx)
		return projectsLoadedMsg{projects: projects, err: err}
	}
}

func (m *Model) loadTeams() tea.Cmd {
	ctx, q := m.ctx, m.queries
	return func() tea.Msg {
		teams, err := q.Teams(ctx)
		return teamsLoadedMsg{teams: teams, err: err}
	}
}

func (m *Model) runSearch(query string) tea.Cmd {
	ctx, q := m.ctx, m.queries
	req := search.Request{
		Query:   query,
		Filters: search.Filters{IncludeProjects: true},
		Sort:    search.SortNewest,
	}
	return func() tea.Msg {
		resp, err := q.Search(ctx, req)
		if err != nil {
			return searchDoneMsg{err: err}
		}
		return searchDoneMsg{results: resp.Results}
	}
}

// listen waits for the next realtime event.
func (m *Model) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func (m *Model) move(id string, status models.TaskStatus, position int) tea.Cmd {
	ctx, b := m.ctx, m.board
	return func() tea.Msg {
		return moveDoneMsg{err: b.Move(ctx, id, status, position)}
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = notice{text: text, err: isErr}
}

func (m *Model) flushNotices() {
	for _, n := range m.notes.drain() {
		m.status = n
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tasksLoadedMsg:
		m.loading = false
		if msg.err != nil {
			// an unreachable server shows an empty board
			m.board.Load(nil)
			m.setStatus(client.FailureMessage("load tasks", msg.err), true)
		} else {
			m.board.Load(msg.tasks)
		}
		m.clampCursor()
		return m, nil

	case projectsLoadedMsg:
		m.projects = msg.projects
		if msg.err != nil {
			m.setStatus(client.FailureMessage("load projects", msg.err), true)
		}
		return m, nil

	case teamsLoadedMsg:
		m.teams = msg.teams
		if msg.err != nil {
			m.setStatus(client.FailureMessage("load teams", msg.err), true)
		}
		return m, nil

	case searchDoneMsg:
		m.results, m.searchErr = msg.results, ""
		if msg.err != nil {
			m.searchErr = client.FailureMessage("search", msg.err)
		}
		return m, nil

	case moveDoneMsg:
		m.flushNotices()
		m.clampCursor()
		if msg.err != nil {
			return m, nil
		}
		return m, m.loadTasks()

	case eventMsg:
		evt := realtime.Event(msg)
		missed := evt.Type == realtime.Hello && evt.Version > m.version && m.version > 0
		if evt.Version > m.version {
			m.version = evt.Version
		}
		m.queries.Apply(evt)
		cmds := []tea.Cmd{m.listen()}
		if missed {
			// reconnected after missing events
			m.queries.Invalidate(cache.TagTasks, cache.TagProjects, cache.TagTeams)
			cmds = append(cmds, m.loadTasks())
		}
		switch evt.Entity {
		case "task", "subtask":
			cmds = append(cmds, m.loadTasks())
		case "project":
			cmds = append(cmds, m.loadTasks(), m.loadProjects())
		case "team":
			cmds = append(cmds, m.loadTeams())
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.input.Blur()
		return m, m.runSearch(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.store.State()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextTab):
		next := m.store.Dispatch(appstate.NextTab())
		return m, m.enterTab(next.ActiveTab)

	case key.Matches(msg, m.keys.Search):
		m.store.Dispatch(appstate.SelectTab(appstate.TabSearch))
		m.searching = true
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Sidebar):
		m.store.Dispatch(appstate.ToggleSidebar())
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		m.store.Dispatch(appstate.ToggleTheme())
		m.restyle()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.queries.Invalidate(cacheTags(state.ActiveTab)...)
		m.loading = true
		return m, tea.Batch(m.loadTasks(), m.enterTab(state.ActiveTab))

	case key.Matches(msg, m.keys.Back):
		m.store.Dispatch(appstate.ClearTask())
		return m, nil
	}

	if state.ActiveTab != appstate.TabBoard {
		return m, nil
	}
	return m.updateBoard(msg)
}

func cacheTags(tab appstate.Tab) []string {
	switch tab {
	case appstate.TabProjects:
		return []string{cache.TagProjects}
	case appstate.TabTeam:
		return []string{cache.TagTeams}
	}
	return []string{cache.TagTasks}
}

func (m *Model) enterTab(tab appstate.Tab) tea.Cmd {
	switch tab {
	case appstate.TabProjects:
		return m.loadProjects()
	case appstate.TabTeam:
		return m.loadTeams()
	}
	return nil
}

func (m *Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(models.TaskStatuses) - 1
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < last {
			m.col++
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		m.row++
	case key.Matches(msg, m.keys.Select):
		if t, ok := m.selected(); ok {
			m.store.Dispatch(appstate.SelectTask(t.ID))
			m.store.Dispatch(appstate.SetSidebar(true))
		}
	case key.Matches(msg, m.keys.MoveLeft):
		return m, m.moveAcross(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m, m.moveAcross(1)
	case key.Matches(msg, m.keys.MoveUp):
		return m, m.moveWithin(-1)
	case key.Matches(msg, m.keys.MoveDown):
		return m, m.moveWithin(1)
	}
	m.clampCursor()
	return m, nil
}

// moveAcross sends the selected task to the end of the neighbouring column.
func (m *Model) moveAcross(dir int) tea.Cmd {
	t, ok := m.selected()
	dest := m.col + dir
	if !ok || dest < 0 || dest >= len(models.TaskStatuses) {
		return nil
	}
	status := models.TaskStatuses[dest]
	position := 0
	if col := m.board.Column(status); len(col) > 0 {
		position = col[len(col)-1].Position + 1
	}
	m.col, m.row = dest, len(m.board.Column(status))
	return m.move(t.ID, status, position)
}

func (m *Model) moveWithin(dir int) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	column := m.board.Column(t.Status)
	target := m.row + dir
	if target < 0 || target >= len(column) {
		return nil
	}
	// the card lands on the neighbour's slot and everything from there
	// shifts down, so going down means taking the slot after it
	position := column[target].Position
	if dir > 0 {
		position++
	}
	m.row = target
	return m.move(t.ID, t.Status, position)
}

func (m *Model) selected() (models.Task, bool) {
	column := m.board.Column(models.TaskStatuses[m.col])
	if m.row < 0 || m.row >= len(column) {
		return models.Task{}, false
	}
	return column[m.row], true
}

func (m *Model) clampCursor() {
	n := len(m.board.Column(models.TaskStatuses[m.col]))
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// now is swapped in tests.
var now = time.Now
