package ui

import "github.com/charmbracelet/lipgloss"

// Styles contains pre-built Lipgloss styles.
type Styles struct {
	Header     lipgloss.Style
	Footer     lipgloss.Style
	GroupTitle lipgloss.Style
	Badge      lipgloss.Style
	Selected   lipgloss.Style
	Muted      lipgloss.Style
	Accent     lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Danger     lipgloss.Style
	Toast      lipgloss.Style
	Panel      lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color("#282a36")).
			Foreground(lipgloss.Color("#f8f8f2")).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")).
			Padding(0, 1),
		GroupTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bd93f9")).
			Bold(true),
		Badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#282a36")).
			Background(lipgloss.Color("#ffb86c")).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color("#44475a")).
			Foreground(lipgloss.Color("#f8f8f2")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")),
		Accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8be9fd")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50fa7b")).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c")),
		Danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true),
		Toast: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#50fa7b")).
			Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6272a4")).
			Padding(0, 1),
	}
}
