package components

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

// HoldingRow is one significant holding as displayed.
type HoldingRow struct {
	Symbol string
	Amount decimal.Decimal
	// Share is the fraction of total supply held.
	Share decimal.Decimal
}

// HoldingsComponent renders the watch-list balances.
type HoldingsComponent struct {
	rows []HoldingRow
}

// NewHoldingsComponent creates a new holdings component.
func NewHoldingsComponent() *HoldingsComponent {
	return &HoldingsComponent{}
}

// Update replaces the holdings.
func (h *HoldingsComponent) Update(rows []HoldingRow) {
	h.rows = rows
}

// View renders the holdings component.
func (h *HoldingsComponent) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Header.Render("HOLDINGS"))
	sb.WriteString("\n")

	if len(h.rows) == 0 {
		sb.WriteString(theme.Muted.Render("  No significant holdings"))
		return sb.String()
	}

	for _, r := range h.rows {
		share := "-"
		if !r.Share.IsZero() {
			share = r.Share.Mul(decimal.NewFromInt(100)).StringFixed(6) + "%"
		}
		sb.WriteString(fmt.Sprintf("  %-10s %22s  %s\n", r.Symbol, r.Amount.String(), theme.Muted.Render(share)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
