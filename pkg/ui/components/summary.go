package components

import (
	"fmt"
	"time"

	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

// Summary holds batch counters for display.
type Summary struct {
	Total      int
	Success    int
	Skipped    int
	Failed     int
	Confirming int
	Elapsed    time.Duration
}

// SummaryComponent renders the per-status counters.
type SummaryComponent struct {
	summary Summary
}

// NewSummaryComponent creates a new summary component.
func NewSummaryComponent() *SummaryComponent {
	return &SummaryComponent{}
}

// Update updates the counters.
func (s *SummaryComponent) Update(summary Summary) {
	s.summary = summary
}

// Progress returns the settled fraction in [0, 1].
func (s *SummaryComponent) Progress() float64 {
	if s.summary.Total == 0 {
		return 0
	}
	return float64(s.summary.Total-s.summary.Confirming) / float64(s.summary.Total)
}

// View renders the summary component.
func (s *SummaryComponent) View() string {
	label, value := theme.Muted, theme.Value
	green, amber, red := theme.OK, theme.Alert, theme.Fail

	failed := value.Render(fmt.Sprintf("%d", s.summary.Failed))
	if s.summary.Failed > 0 {
		failed = red.Render(fmt.Sprintf("%d", s.summary.Failed))
	}

	return label.Render("SUMMARY") + "\n" +
		fmt.Sprintf("Tokens: %s  │  Swapped: %s  │  Skipped: %s  │  Failed: %s  │  Pending: %s  │  Elapsed: %s",
			value.Render(fmt.Sprintf("%d", s.summary.Total)),
			green.Render(fmt.Sprintf("%d", s.summary.Success)),
			amber.Render(fmt.Sprintf("%d", s.summary.Skipped)),
			failed,
			value.Render(fmt.Sprintf("%d", s.summary.Confirming)),
			value.Render(s.summary.Elapsed.Round(time.Second).String()),
		)
}
