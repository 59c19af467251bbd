package ui

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#4CAF50")
	Warning   = lipgloss.Color("#FFB74D")
	Error     = lipgloss.Color("#F44336")

	Text       = lipgloss.Color("#E0E0E0")
	TextBright = lipgloss.Color("#FFFFFF")
	Muted      = lipgloss.Color("#90A4AE")
	BorderDark = lipgloss.Color("#30363D")
	HeaderBg   = lipgloss.Color("#1C2128")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(TextBright).
			Background(HeaderBg).
			Padding(0, 2).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderDark).
			Foreground(Text).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	ColumnStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)

// StatusBadge renders a session status.
func StatusBadge(status string) string {
	switch status {
	case "running":
		return SuccessStyle.Render("● RUNNING")
	case "starting":
		return InfoStyle.Render("◌ STARTING")
	case "finished":
		return MutedStyle.Render("■ FINISHED")
	case "failed":
		return ErrorStyle.Render("✖ FAILED")
	default:
		return MutedStyle.Render("? " + status)
	}
}

// CountStyle highlights non-zero error counters.
func CountStyle(n uint64, warn bool) lipgloss.Style {
	switch {
	case n == 0:
		return MutedStyle
	case warn:
		return WarningStyle
	default:
		return ErrorStyle
	}
}
