package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"projectboard/internal/appstate"
	"projectboard/internal/models"
)

const (
	minColumnWidth = 14
	sidebarWidth   = 34
	dateLayout     = "Jan 2"
)

// ColumnLabel turns a status such as "in-progress" into "In Progress".
func ColumnLabel(s models.TaskStatus) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "-", " "))
}

func (m *Model) View() string {
	state := m.store.State()

	var body string
	switch state.ActiveTab {
	case appstate.TabBoard:
		body = m.boardView(state)
	case appstate.TabTasks:
		body = m.taskView(state)
	case appstate.TabProjects:
		body = m.projectsView()
	case appstate.TabTeam:
		body = m.teamsView()
	case appstate.TabSearch:
		body = m.searchView()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(state),
		body,
		m.statusLine(),
		m.help.View(m.keys),
	)
}

func (m *Model) header(state appstate.State) string {
	parts := []string{m.styles.title.Render("projectboard")}
	for _, tab := range appstate.Tabs {
		style := m.styles.tab
		if tab == state.ActiveTab {
			style = m.styles.activeTab
		}
		parts = append(parts, style.Render(string(tab)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...) + "\n"
}

func (m *Model) statusLine() string {
	switch {
	case m.loading:
		return m.spinner.View() + m.styles.dim.Render(" loading")
	case m.status.text == "":
		return ""
	case m.status.err:
		return m.styles.err.Render(m.status.text)
	}
	return m.styles.ok.Render(m.status.text)
}

func (m *Model) columnWidth(sidebar bool) int {
	avail := m.width
	if sidebar {
		avail -= sidebarWidth
	}
	w := avail / len(models.TaskStatuses)
	if w < minColumnWidth {
		w = minColumnWidth
	}
	return w
}

func (m *Model) boardView(state appstate.State) string {
	detail, hasDetail := m.board.Task(state.SelectedTaskID)
	showSidebar := state.SidebarOpen && hasDetail
	width := m.columnWidth(showSidebar)
	inner := width - 4

	cols := make([]string, 0, len(models.TaskStatuses))
	for i, status := range models.TaskStatuses {
		tasks := m.board.Column(status)
		lines := []string{m.styles.heading.Render(truncate(fmt.Sprintf("%s %d", ColumnLabel(status), len(tasks)), inner))}
		for j, t := range tasks {
			style := m.styles.card
			if t.Overdue(now()) {
				style = m.styles.overdue
			}
			if i == m.col && j == m.row {
				style = m.styles.selected
			}
			lines = append(lines, style.Render(truncate(t.Title, inner)))
		}
		box := m.styles.column
		if i == m.col {
			box = m.styles.focused
		}
		cols = append(cols, box.Width(width-2).Render(strings.Join(lines, "\n")))
	}

	view := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	if showSidebar {
		view = lipgloss.JoinHorizontal(lipgloss.Top, view, m.sidebar(detail))
	}
	return view
}

func (m *Model) sidebar(t models.Task) string {
	return m.styles.sidebar.Width(sidebarWidth - 2).Render(strings.Join(taskLines(t), "\n"))
}

func taskLines(t models.Task) []string {
	lines := []string{
		t.Title,
		"",
		"status:   " + ColumnLabel(t.Status),
		"priority: " + string(t.Priority),
	}
	if t.DueDate != nil {
		lines = append(lines, "due:      "+t.DueDate.Format(dateLayout))
	}
	if len(t.Assignees) > 0 {
		names := make([]string, len(t.Assignees))
		for i, u := range t.Assignees {
			names[i] = u.Name
		}
		lines = append(lines, "assigned: "+strings.Join(names, ", "))
	}
	if t.Description != "" {
		lines = append(lines, "", t.Description)
	}
	return lines
}

func (m *Model) taskView(state appstate.State) string {
	t, ok := m.board.Task(state.SelectedTaskID)
	if !ok {
		return m.styles.dim.Render("No task selected. Press enter on a card.")
	}
	return strings.Join(taskLines(t), "\n")
}

func (m *Model) projectsView() string {
	if len(m.projects) == 0 {
		return m.styles.dim.Render("No projects.")
	}
	lines := make([]string, 0, len(m.projects))
	for _, p := range m.projects {
		lines = append(lines, fmt.Sprintf("%-6s %s  %s", p.Key, p.Name, m.styles.dim.Render(string(p.Status))))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) teamsView() string {
	if len(m.teams) == 0 {
		return m.styles.dim.Render("No teams.")
	}
	lines := make([]string, 0, len(m.teams))
	for _, team := range m.teams {
		lines = append(lines, fmt.Sprintf("%s  %s", team.Name, m.styles.dim.Render(fmt.Sprintf("%d members", len(team.Members)))))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) searchView() string {
	lines := []string{m.styles.searchLine.Render("/ ") + m.input.View(), ""}
	switch {
	case m.searchErr != "":
		lines = append(lines, m.styles.err.Render(m.searchErr))
	case len(m.results) == 0:
		lines = append(lines, m.styles.dim.Render("No results."))
	}
	for _, r := range m.results {
		lines = append(lines, fmt.Sprintf("%-8s %s  %s", r.Kind, r.Title, m.styles.dim.Render(r.Path)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
