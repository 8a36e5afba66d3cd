// Package search filters and ranks tasks and projects for the global search box.
package search

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"projectboard/internal/models"
)

// Kind discriminates the entity behind a Result.
type Kind string

const (
	KindTask    Kind = "task"
	KindProject Kind = "project"
)

// DateWindow selects a trailing window applied to task due dates.
type DateWindow string

const (
	DateAny    DateWindow = ""
	DateToday  DateWindow = "today"
	DateLast7  DateWindow = "7d"
	DateLast30 DateWindow = "30d"
)

// ParseDateWindow maps a query parameter to a window. Unknown values and
// "all" disable the filter.
func ParseDateWindow(s string) DateWindow {
	switch DateWindow(strings.ToLower(strings.TrimSpace(s))) {
	case DateToday:
		return DateToday
	case DateLast7, "last7days", "week":
		return DateLast7
	case DateLast30, "last30days", "month":
		return DateLast30
	}
	return DateAny
}

func (w DateWindow) days() int {
	switch w {
	case DateLast7:
		return 7
	case DateLast30:
		return 30
	}
	return 0
}

// SortKey orders the combined result list.
type SortKey string

const (
	SortNewest       SortKey = "newest"
	SortOldest       SortKey = "oldest"
	SortAlphabetical SortKey = "alphabetical"
)

// ParseSortKey defaults to newest.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortAlphabetical, "alpha", "title":
		return SortAlphabetical
	}
	return SortNewest
}

// Filters narrow the candidate set. Empty strings and "all" are inactive.
type Filters struct {
	Creator         string
	Project         string
	Date            DateWindow
	IncludeProjects bool
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "all")
}

// Request is one search invocation.
type Request struct {
	Query   string
	Filters Filters
	Sort    SortKey
}

// Result is a single hit. Exactly one of Task and Project is set, matching Kind.
type Result struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Path      string          `json:"path"`
	Timestamp time.Time       `json:"timestamp"`
	Task      *models.Task    `json:"task,omitempty"`
	Project   *models.Project `json:"project,omitempty"`
}

// TaskResult wraps t as a task hit.
func TaskResult(t *models.Task) Result {
	return Result{
		Kind:      KindTask,
		ID:        t.ID,
		Title:     t.Title,
		Path:      "/tasks?taskId=" + t.ID,
		Timestamp: t.CreatedAt,
		Task:      t,
	}
}

// ProjectResult wraps p as a project hit. Projects without a creation time
// sort by their start date.
func ProjectResult(p *models.Project) Result {
	ts := p.CreatedAt
	if ts.IsZero() && p.StartDate != nil {
		ts = *p.StartDate
	}
	return Result{
		Kind:      KindProject,
		ID:        p.ID,
		Title:     p.Name,
		Path:      "/project/" + p.ID,
		Timestamp: ts,
		Project:   p,
	}
}

// Run filters tasks and projects by req and returns them as one sorted list,
// tasks first before sorting. It never fails; missing data yields no results.
func Run(req Request, now time.Time, tasks []models.Task, projects []models.Project) []Result {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	f := req.Filters

	results := make([]Result, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if matchTask(t, query, f, now) {
			results = append(results, TaskResult(t))
		}
	}

	// projects carry neither a creator nor a due date
	if f.IncludeProjects && !active(f.Creator) && f.Date == DateAny {
		for i := range projects {
			p := &projects[i]
			if matchProject(p, query, f) {
				results = append(results, ProjectResult(p))
			}
		}
	}

	Sort(results, req.Sort)
	return results
}

func matchTask(t *models.Task, query string, f Filters, now time.Time) bool {
	if query != "" &&
		!strings.Contains(strings.ToLower(t.Title), query) &&
		!strings.Contains(strings.ToLower(t.Description), query) {
		return false
	}
	if active(f.Creator) && !createdBy(t, f.Creator) {
		return false
	}
	if active(f.Project) && t.ProjectRef() != f.Project {
		return false
	}
	if f.Date != DateAny && !dueWithin(t.DueDate, f.Date, now) {
		return false
	}
	return true
}

// createdBy matches the creator id, or an assignee name for tasks that
// were imported without one.
func createdBy(t *models.Task, creator string) bool {
	if t.CreatorID != "" {
		return t.CreatorID == creator
	}
	for _, a := range t.Assignees {
		if strings.EqualFold(a.Name, creator) {
			return true
		}
	}
	return false
}

func matchProject(p *models.Project, query string, f Filters) bool {
	if active(f.Project) && p.ID != f.Project {
		return false
	}
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Key), query)
}

// dueWithin reports whether due falls in the window. "today" compares
// calendar days in now's location; the trailing windows span
// [now-N days, now], so anything due after now is excluded.
func dueWithin(due *time.Time, w DateWindow, now time.Time) bool {
	if due == nil {
		return false
	}
	if w == DateToday {
		return day(*due, now.Location()).Equal(day(now, now.Location()))
	}
	from := now.AddDate(0, 0, -w.days())
	return !due.After(now) && !due.Before(from)
}

func day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Sort orders results in place. The sort is stable so equal keys keep
// their input order.
func Sort(results []Result, key SortKey) {
	switch key {
	case SortAlphabetical:
		c := collate.New(language.English, collate.IgnoreCase)
		slices.SortStableFunc(results, func(a, b Result) int {
			return c.CompareString(a.Title, b.Title)
		})
	case SortOldest:
		slices.SortStableFunc(results, func(a, b Result) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	default:
		slices.SortStableFunc(results, func(a, b Result) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
	}
}
