package infra

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/token-sweeper/business/sweep/app"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/pkg/ui"
)

var _ app.Observer = (*TUIReporter)(nil)

// Sender delivers messages to a running Bubble Tea program.
type Sender interface {
	Send(msg tea.Msg)
}

// TUIReporter forwards batch snapshots to the dashboard.
type TUIReporter struct {
	program Sender
}

// NewTUIReporter creates a TUIReporter. A nil program drops updates.
func NewTUIReporter(program Sender) *TUIReporter {
	return &TUIReporter{program: program}
}

// OnUpdate implements app.Observer.
func (r *TUIReporter) OnUpdate(status domain.BatchStatus) {
	if r.program == nil {
		return
	}
	r.program.Send(ui.BatchMsg{Status: status})
}
