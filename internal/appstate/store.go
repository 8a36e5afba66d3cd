// Package appstate holds UI state shared by the screens of a board client.
package appstate

import "sync"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Tab string

const (
	TabBoard    Tab = "board"
	TabTasks    Tab = "tasks"
	TabProjects Tab = "projects"
	TabTeam     Tab = "team"
	TabSearch   Tab = "search"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabBoard, TabTasks, TabProjects, TabTeam, TabSearch}

type State struct {
	SidebarOpen    bool
	ActiveTab      Tab
	SelectedTaskID string
	Theme          Theme
}

// Initial is the state a new client starts in.
func Initial() State {
	return State{SidebarOpen: true, ActiveTab: TabBoard, Theme: ThemeDark}
}

// Action is a state change request. Use the constructors below.
type Action struct {
	kind  actionKind
	tab   Tab
	task  string
	theme Theme
	open  bool
}

type actionKind int

const (
	toggleSidebar actionKind = iota + 1
	setSidebar
	selectTab
	nextTab
	selectTask
	clearTask
	setTheme
	toggleTheme
)

func ToggleSidebar() Action { return Action{kind: toggleSidebar} }
func SetSidebar(open bool) Action { return Action{kind: setSidebar, open: open} }
func SelectTab(tab Tab) Action { return Action{kind: selectTab, tab: tab} }
func NextTab() Action { return Action{kind: nextTab} }
func SelectTask(id string) Action { return Action{kind: selectTask, task: id} }
func ClearTask() Action { return Action{kind: clearTask} }
func SetTheme(theme Theme) Action { return Action{kind: setTheme, theme: theme} }
func ToggleTheme() Action { return Action{kind: toggleTheme} }

// Reduce returns the state after a. It never mutates s. Unknown tabs and
// themes leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a.kind {
	case toggleSidebar:
		s.SidebarOpen = !s.SidebarOpen
	case setSidebar:
		s.SidebarOpen = a.open
	case selectTab:
		if validTab(a.tab) {
			s.ActiveTab = a.tab
		}
	case nextTab:
		s.ActiveTab = Tabs[(tabIndex(s.ActiveTab)+1)%len(Tabs)]
	case selectTask:
		s.SelectedTaskID = a.task
	case clearTask:
		s.SelectedTaskID = ""
	case setTheme:
		if a.theme == ThemeLight || a.theme == ThemeDark {
			s.Theme = a.theme
		}
	case toggleTheme:
		if s.Theme == ThemeDark {
			s.Theme = ThemeLight
		} else {
			s.Theme = ThemeDark
		}
	}
	return s
}

func validTab(t Tab) bool { return tabIndex(t) >= 0 }

func tabIndex(t Tab) int {
	for i, known := range Tabs {
		if known == t {
			return i
		}
	}
	return -1
}

// Store applies actions under a lock and tells subscribers about the result.
type Store struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)
}

func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the state and returns the new state. Subscribers
// run after the lock is released, so they may call State or Dispatch.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	prev := s.state
	s.state = Reduce(prev, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if next != prev {
		for _, fn := range subs {
			fn(next)
		}
	}
	return next
}

// Subscribe registers fn for state changes and returns a func that removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
