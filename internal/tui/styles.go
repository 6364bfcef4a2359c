package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the terminal client.
type Theme struct {
	Text      string
	Muted     string
	Accent    string
	Success   string
	Warning   string
	Danger    string
	Border    string
	Selection string
}

// slate palette, from Tailwind CSS Slate/Sky.
func defaultTheme() Theme {
	return Theme{
		Text:      "#f1f5f9",
		Muted:     "#94a3b8",
		Accent:    "#38bdf8",
		Success:   "#22c55e",
		Warning:   "#f59e0b",
		Danger:    "#ef4444",
		Border:    "#334155",
		Selection: "#0284c7",
	}
}

// Styles holds pre-built lipgloss styles for the theme.
type Styles struct {
	Text     lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Danger   lipgloss.Style
	Selected lipgloss.Style
	Pane     lipgloss.Style
	PaneHot  lipgloss.Style
	Header   lipgloss.Style
	Footer   lipgloss.Style
}

func (t Theme) Styles() Styles {
	return Styles{
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Selection)).
			Foreground(lipgloss.Color(t.Text)),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),
		PaneHot: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Accent)).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),
	}
}
