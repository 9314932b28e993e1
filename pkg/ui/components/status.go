package components

import (
	"fmt"
	"strings"

	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

// ConnectionStatus represents a collaborator's status.
type ConnectionStatus struct {
	Name      string
	Connected bool
	Detail    string
}

// StatusComponent renders collaborator status in insertion order.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// View renders the status line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return ""
	}

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		style, icon := theme.OK, "●"
		if !conn.Connected {
			style, icon = theme.Fail, "○"
		}

		label := conn.Name
		if conn.Detail != "" {
			label = fmt.Sprintf("%s (%s)", conn.Name, conn.Detail)
		}
		parts = append(parts, style.Render(icon+" "+label))
	}
	return strings.Join(parts, "  │  ")
}
