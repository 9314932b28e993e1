// Package theme holds the dashboard palette and the styles shared by the
// model and its components.
package theme

import "github.com/charmbracelet/lipgloss"

var (
	Accent    = lipgloss.Color("#7C3AED")
	Highlight = lipgloss.Color("#4C1D95")
	Good      = lipgloss.Color("#10B981")
	Warn      = lipgloss.Color("#F59E0B")
	Bad       = lipgloss.Color("#EF4444")
	Dim       = lipgloss.Color("#6B7280")
	Line      = lipgloss.Color("#374151")
	White     = lipgloss.Color("#FFFFFF")
)

var (
	Title  = lipgloss.NewStyle().Bold(true).Foreground(White).Background(Accent).Padding(0, 2)
	Header = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	Box    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Line).Padding(0, 1)
	Help   = lipgloss.NewStyle().Foreground(Dim).Padding(0, 1)

	Muted  = lipgloss.NewStyle().Foreground(Dim)
	Value  = lipgloss.NewStyle().Foreground(White).Bold(true)
	OK     = lipgloss.NewStyle().Foreground(Good).Bold(true)
	Alert  = lipgloss.NewStyle().Foreground(Warn).Bold(true)
	Fail   = lipgloss.NewStyle().Foreground(Bad).Bold(true)
	ErrMsg = lipgloss.NewStyle().Foreground(Bad)
)

// ForState colors batch, token and startup states alike. Unknown states
// are muted.
func ForState(state string) lipgloss.Style {
	switch state {
	case "success", "connected", "done":
		return OK
	case "confirming", "connecting", "skipped":
		return Alert
	case "error", "failed":
		return Fail
	default:
		return Muted
	}
}
