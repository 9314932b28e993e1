package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

const (
	defaultWidth = 100
	wideLayout   = 140
	barWidth     = 40
)

const logo = `
   ███████╗██╗    ██╗███████╗███████╗██████╗
   ██╔════╝██║    ██║██╔════╝██╔════╝██╔══██╗
   ███████╗██║ █╗ ██║█████╗  █████╗  ██████╔╝
   ╚════██║██║███╗██║██╔══╝  ██╔══╝  ██╔═══╝
   ███████║╚███╔███╔╝███████╗███████╗██║
   ╚══════╝ ╚══╝╚══╝ ╚══════╝╚══════╝╚═╝
`

func (m Model) View() string {
	switch {
	case m.quitting:
		return "\n  Goodbye!\n\n"
	case m.phase == PhaseWelcome:
		return m.welcomeView()
	case m.phase == PhaseStartup:
		return m.startupView()
	}
	return m.dashboardView()
}

func (m Model) dashboardView() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	main := []string{m.batchLine(), "", m.tokens.View(), "", m.summary.View()}
	if p := m.summary.Progress(); m.hasBatch && p > 0 {
		main = append(main, progressBar(p, barWidth))
	}
	side := m.holdings.View() + "\n\n" + m.activity()

	var body string
	if width > wideLayout {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			theme.Box.Width(width*2/3-2).Render(strings.Join(main, "\n")),
			theme.Box.Width(width/3-2).Render(side),
		)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			theme.Box.Width(width-4).Render(strings.Join(main, "\n")),
			theme.Box.Width(width-4).Render(side),
		)
	}

	parts := []string{theme.Title.Render(" Token Sweeper "), m.statusLine(), body}
	if e := m.errorPanel(); e != "" {
		parts = append(parts, e)
	}
	parts = append(parts, theme.Help.Render(m.help.View(m.keys)))
	return strings.Join(parts, "\n\n")
}

func (m Model) batchLine() string {
	if !m.hasBatch {
		return theme.Header.Render("BATCH") + "  " + theme.Muted.Render("idle")
	}

	state := theme.ForState(string(m.batch.Status)).Render(strings.ToUpper(string(m.batch.Status)))
	if m.batch.Status == domain.BatchConfirming {
		state = m.spinner.View() + " " + state
	}
	return strings.Join([]string{
		theme.Header.Render("BATCH") + " " + theme.Muted.Render(shortID(m.batch)),
		state,
		theme.Muted.Render("→ " + m.batch.Target.Hex()),
		theme.Muted.Render("mode: " + string(m.batch.Mode)),
	}, "  ")
}

func (m Model) activity() string {
	lines := []string{theme.Header.Render("ACTIVITY")}
	if len(m.logs) == 0 {
		lines = append(lines, theme.Muted.Render("  Waiting for a sweep..."))
	}
	for _, l := range m.logs {
		lines = append(lines, theme.Muted.Render("  "+l))
	}
	return strings.Join(lines, "\n")
}

func (m Model) errorPanel() string {
	if len(m.errors) == 0 {
		return ""
	}
	lines := []string{theme.Fail.Render("ERRORS") + theme.Muted.Render(" (e: clear)")}
	for _, e := range m.errors {
		ago := time.Since(e.at).Round(time.Second)
		lines = append(lines, theme.ErrMsg.Render("  • "+e.text+" ")+theme.Muted.Render(fmt.Sprintf("(%s ago)", ago)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusLine() string {
	var parts []string
	if s := m.status.View(); s != "" {
		parts = append(parts, s)
	}
	if !m.updated.IsZero() {
		ago := time.Since(m.updated).Round(time.Second)
		parts = append(parts, theme.Muted.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}
	return strings.Join(parts, "  │  ")
}

func (m Model) welcomeView() string {
	dots := strings.Repeat(".", int(time.Since(m.shownAt)/(300*time.Millisecond))%4)
	return strings.Join([]string{
		"\n\n\n",
		theme.Header.Render(logo),
		theme.Muted.Render("          E R C - 2 0   T O K E N   S W E E P E R"),
		"\n",
		lipgloss.NewStyle().Foreground(theme.Good).Render("                  Initializing" + dots),
		"",
		theme.Muted.Render("            Press any key to skip, or wait..."),
		"",
	}, "\n")
}

func (m Model) startupView() string {
	lines := []string{
		"\n",
		theme.Header.Render("  Token Sweeper"),
		"",
		lipgloss.NewStyle().Bold(true).Render("  Starting up..."),
		"",
	}
	for _, s := range m.steps {
		icon, text := "○", "Pending"
		switch {
		case s.ready():
			icon, text = "✓", "Ready"
		case s.state == StepConnecting:
			icon, text = m.spinner.View(), "Connecting..."
		case s.state == StepFailed:
			icon, text = "✗", "Failed"
		}
		style := theme.ForState(s.state)
		lines = append(lines, fmt.Sprintf("  %s %s %s", style.Render(icon), theme.Muted.Render(s.label), style.Render(text)))
	}
	lines = append(lines, "", theme.Muted.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.bootAt).Round(time.Second))))
	for _, l := range m.logs {
		lines = append(lines, theme.ErrMsg.Render("  "+l))
	}
	return strings.Join(lines, "\n") + "\n"
}

// progressBar draws the settled share of the batch.
func progressBar(ratio float64, width int) string {
	filled := min(int(ratio*float64(width)), width)
	return theme.OK.Render(strings.Repeat("█", filled)) +
		theme.Muted.Render(strings.Repeat("░", width-filled)+fmt.Sprintf(" %3.0f%%", ratio*100))
}
