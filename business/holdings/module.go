// Package holdings implements the holdings bounded context: the watch-list
// of sweepable tokens and the cached snapshot of significant balances.
package holdings

import (
	"context"

	"github.com/fd1az/token-sweeper/business/holdings/app"
	holdingsDI "github.com/fd1az/token-sweeper/business/holdings/di"
	sweepDI "github.com/fd1az/token-sweeper/business/sweep/di"
	"github.com/fd1az/token-sweeper/internal/di"
	"github.com/fd1az/token-sweeper/internal/monolith"
)

// Module implements the holdings bounded context.
type Module struct{}

// Name identifies the module in startup logs.
func (m *Module) Name() string { return "holdings" }

// RegisterServices registers all holdings services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register HoldingsService (public - consumed by sweep and the API)
	di.RegisterToken(c, holdingsDI.HoldingsService, func(sr di.ServiceRegistry) *app.HoldingsService {
		cfg := monolith.SharedConfig(sr)

		return app.NewHoldingsService(
			app.Config{
				ChainID:         cfg.Ethereum.ChainID,
				Tokens:          cfg.Holdings.TokenAddresses(),
				TTL:             cfg.Holdings.CacheTTL,
				MinHoldingRatio: cfg.Holdings.MinHoldingRatio,
			},
			sweepDI.GetTokenContracts(sr),
			sweepDI.GetDenylist(sr),
			monolith.SharedAssetRegistry(sr),
			monolith.SharedLogger(sr),
		)
	})

	return nil
}

// Startup registers cleanup and reports the watch-list.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := holdingsDI.GetHoldingsService(mono.Services())
	mono.OnClose(svc.Close)

	mono.Logger().Info(ctx, "holdings module started", "watch_list", len(svc.Tokens()))
	return nil
}
