// Package components provides reusable TUI components.
package components

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

// TokenRow is one processed token as displayed.
type TokenRow struct {
	Symbol  string
	Address string
	Amount  string
	Status  string
	Reason  string
	TxHash  string
}

// TokensComponent renders the processed tokens of the current batch.
type TokensComponent struct {
	table table.Model
	rows  []TokenRow
}

// NewTokensComponent creates a token table showing height rows.
func NewTokensComponent(height int) *TokensComponent {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Token", Width: 10},
			{Title: "Address", Width: 13},
			{Title: "Amount", Width: 18},
			{Title: "Status", Width: 13},
			{Title: "Reason", Width: 30},
			{Title: "Tx", Width: 13},
		}),
		table.WithHeight(height),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Line).
		BorderBottom(true).
		Bold(true).
		Foreground(theme.Accent)
	s.Selected = s.Selected.
		Foreground(theme.White).
		Background(theme.Highlight).
		Bold(false)
	t.SetStyles(s)

	return &TokensComponent{table: t}
}

// Update replaces the table content.
func (c *TokensComponent) Update(rows []TokenRow) {
	c.rows = rows
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.Symbol,
			shorten(r.Address),
			r.Amount,
			statusIcon(r.Status) + " " + r.Status,
			r.Reason,
			shorten(r.TxHash),
		})
	}
	c.table.SetRows(out)
}

// Len returns the number of rows.
func (c *TokensComponent) Len() int {
	return len(c.rows)
}

// ScrollUp moves the cursor up one row.
func (c *TokensComponent) ScrollUp() {
	c.table.MoveUp(1)
}

// ScrollDown moves the cursor down one row.
func (c *TokensComponent) ScrollDown() {
	c.table.MoveDown(1)
}

// View renders the token table.
func (c *TokensComponent) View() string {
	if len(c.rows) == 0 {
		return theme.Muted.Render("No sweep yet...")
	}
	return c.table.View()
}

func statusIcon(status string) string {
	switch status {
	case "success":
		return "✓"
	case "skipped":
		return "↷"
	case "failed":
		return "✗"
	default:
		return "…"
	}
}

// shorten renders 0x1234…abcd for addresses and hashes.
func shorten(hex string) string {
	if len(hex) <= 13 {
		return hex
	}
	return hex[:6] + "…" + hex[len(hex)-4:]
}
