package infra

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	holdingsApp "github.com/fd1az/token-sweeper/business/holdings/app"
	"github.com/fd1az/token-sweeper/business/sweep/app"
)

var (
	_ app.HoldingsSource = (*HoldingsAdapter)(nil)
	_ app.HoldingsPruner = (*HoldingsAdapter)(nil)
	_ app.Refresher      = (*HoldingsAdapter)(nil)
)

// HoldingsAdapter exposes the holdings service through the sweep ports.
type HoldingsAdapter struct {
	holdings *holdingsApp.HoldingsService
	wallet   app.WalletProvider
}

// NewHoldingsAdapter creates a HoldingsAdapter.
func NewHoldingsAdapter(holdings *holdingsApp.HoldingsService, wallet app.WalletProvider) *HoldingsAdapter {
	return &HoldingsAdapter{holdings: holdings, wallet: wallet}
}

// Candidates implements app.HoldingsSource.
func (a *HoldingsAdapter) Candidates(ctx context.Context, owner, target common.Address) ([]app.Candidate, error) {
	holdings, err := a.holdings.Candidates(ctx, owner, target)
	if err != nil {
		return nil, err
	}

	out := make([]app.Candidate, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, app.Candidate{
			Token:  h.Token,
			Symbol: h.Symbol,
			Amount: h.Amount.String(),
		})
	}
	return out, nil
}

// Prune implements app.HoldingsPruner.
func (a *HoldingsAdapter) Prune(ctx context.Context, token common.Address) {
	a.holdings.Prune(ctx, token)
}

// Refresh implements app.Refresher. Without a session the cache is only
// invalidated.
func (a *HoldingsAdapter) Refresh(ctx context.Context) error {
	session, ok := a.wallet.Session()
	if !ok {
		a.holdings.Invalidate()
		return nil
	}
	_, err := a.holdings.Refresh(ctx, session.Address())
	return err
}
