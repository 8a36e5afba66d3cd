package tui

import (
	"github.com/charmbracelet/lipgloss"

	"projectboard/internal/appstate"
)

// Theme is a terminal color scheme.
type Theme struct {
	Name string

	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	Primary lipgloss.Color
	Accent  lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
}

var Night = Theme{
	Name:          "night",
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),
	Primary:       lipgloss.Color("#7aa2f7"),
	Accent:        lipgloss.Color("#7dcfff"),
	Success:       lipgloss.Color("#9ece6a"),
	Warning:       lipgloss.Color("#e0af68"),
	Error:         lipgloss.Color("#f7768e"),
	Border:        lipgloss.Color("#3b4261"),
	BorderFocus:   lipgloss.Color("#7aa2f7"),
	Selection:     lipgloss.Color("#33467c"),
}

var Day = Theme{
	Name:          "day",
	Foreground:    lipgloss.Color("#3760bf"),
	ForegroundDim: lipgloss.Color("#848cb5"),
	Primary:       lipgloss.Color("#2e7de9"),
	Accent:        lipgloss.Color("#007197"),
	Success:       lipgloss.Color("#587539"),
	Warning:       lipgloss.Color("#8c6c3e"),
	Error:         lipgloss.Color("#f52a65"),
	Border:        lipgloss.Color("#a8aecb"),
	BorderFocus:   lipgloss.Color("#2e7de9"),
	Selection:     lipgloss.Color("#b7c1e3"),
}

// ThemeFor maps the app theme setting to colors.
func ThemeFor(t appstate.Theme) Theme {
	if t == appstate.ThemeLight {
		return Day
	}
	return Night
}

type styles struct {
	title      lipgloss.Style
	tab        lipgloss.Style
	activeTab  lipgloss.Style
	column     lipgloss.Style
	focused    lipgloss.Style
	heading    lipgloss.Style
	card       lipgloss.Style
	selected   lipgloss.Style
	dim        lipgloss.Style
	ok         lipgloss.Style
	err        lipgloss.Style
	sidebar    lipgloss.Style
	overdue    lipgloss.Style
	searchLine lipgloss.Style
}

func newStyles(th Theme) styles {
	base := lipgloss.NewStyle().Foreground(th.Foreground)
	col := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.Border).
		Padding(0, 1)
	return styles{
		title:      base.Bold(true).Foreground(th.Primary),
		tab:        base.Padding(0, 1).Foreground(th.ForegroundDim),
		activeTab:  base.Padding(0, 1).Bold(true).Underline(true).Foreground(th.Accent),
		column:     col,
		focused:    col.BorderForeground(th.BorderFocus),
		heading:    base.Bold(true),
		card:       base,
		selected:   base.Bold(true).Background(th.Selection),
		dim:        base.Foreground(th.ForegroundDim),
		ok:         base.Foreground(th.Success),
		err:        base.Foreground(th.Error),
		sidebar:    col.BorderForeground(th.Accent),
		overdue:    base.Foreground(th.Warning),
		searchLine: base.Foreground(th.Accent),
	}
}
