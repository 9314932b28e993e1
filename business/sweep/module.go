// Package sweep implements the sweep bounded context: converting a batch of
// ERC-20 holdings into one target token through the 0x aggregator.
package sweep

import (
	"context"
	"io"

	holdingsDI "github.com/fd1az/token-sweeper/business/holdings/di"
	"github.com/fd1az/token-sweeper/business/sweep/app"
	sweepDI "github.com/fd1az/token-sweeper/business/sweep/di"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/business/sweep/infra"
	"github.com/fd1az/token-sweeper/business/sweep/infra/denylist"
	"github.com/fd1az/token-sweeper/business/sweep/infra/erc20"
	"github.com/fd1az/token-sweeper/business/sweep/infra/zerox"
	walletDI "github.com/fd1az/token-sweeper/business/wallet/di"
	"github.com/fd1az/token-sweeper/internal/config"
	"github.com/fd1az/token-sweeper/internal/di"
	"github.com/fd1az/token-sweeper/internal/monolith"
	"github.com/fd1az/token-sweeper/internal/ratelimit"
)

// Module implements the sweep bounded context.
type Module struct{}

// Name identifies the module in startup logs.
func (m *Module) Name() string { return "sweep" }

// RegisterServices registers all sweep services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register DenylistStore (private - nil for the memory backend)
	c.RegisterFactory(sweepDI.DenylistStore.Name(), func(sr di.ServiceRegistry) any {
		cfg := monolith.SharedConfig(sr)

		switch cfg.Denylist.Backend {
		case config.DenylistFile:
			return app.DenylistStore(denylist.NewFileStore(cfg.Denylist.Path))
		case config.DenylistPostgres:
			store, err := denylist.OpenPostgres(context.Background(), cfg.Denylist.DSN, cfg.Ethereum.ChainID)
			if err != nil {
				panic("failed to open denylist database: " + err.Error())
			}
			return app.DenylistStore(store)
		default:
			return nil
		}
	})

	// Register Denylist (public - consulted by holdings)
	di.RegisterToken(c, sweepDI.Denylist, func(sr di.ServiceRegistry) *app.Denylist {
		return app.NewDenylist(sweepDI.GetDenylistStore(sr), monolith.SharedLogger(sr))
	})

	// Register TokenContracts (public - balance reads for holdings)
	di.RegisterToken(c, sweepDI.TokenContracts, func(sr di.ServiceRegistry) *erc20.Client {
		client, err := erc20.NewClient(monolith.SharedEthClient(sr), monolith.SharedLogger(sr))
		if err != nil {
			panic("failed to create erc20 client: " + err.Error())
		}
		return client
	})

	// Register QuoteClient (private)
	di.RegisterToken(c, sweepDI.QuoteClient, func(sr di.ServiceRegistry) *zerox.Client {
		cfg := monolith.SharedConfig(sr)

		mode, err := domain.ParseMode(cfg.Quote.Mode)
		if err != nil {
			panic("invalid quote mode: " + err.Error())
		}

		zcfg := zerox.Config{
			BaseURL:           cfg.Quote.BaseURL,
			APIKey:            cfg.Quote.APIKey,
			APIVersion:        cfg.Quote.APIVersion,
			Mode:              mode,
			ChainID:           cfg.Ethereum.ChainID,
			SlippageBps:       cfg.Quote.SlippageBps,
			FeeBps:            cfg.Quote.FeeBps,
			RequestsPerMinute: cfg.Quote.RequestsPerMinute,
			Timeout:           cfg.Quote.Timeout,
		}
		if recipient, ok := cfg.Quote.FeeRecipientAddress(); ok {
			zcfg.FeeRecipient = &recipient
		}

		client, err := zerox.NewClient(zcfg, monolith.SharedLogger(sr))
		if err != nil {
			panic("failed to create 0x client: " + err.Error())
		}
		return client
	})

	// Register Orchestrator (private)
	di.RegisterToken(c, sweepDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := monolith.SharedConfig(sr)
		log := monolith.SharedLogger(sr)

		mode, err := domain.ParseMode(cfg.Quote.Mode)
		if err != nil {
			panic("invalid quote mode: " + err.Error())
		}
		strategy, err := app.NewStrategy(mode)
		if err != nil {
			panic("failed to create submit strategy: " + err.Error())
		}

		tokens := sweepDI.GetTokenContracts(sr)
		holdings := holdingsAdapter(sr)

		o, err := app.NewOrchestrator(app.OrchestratorDeps{
			Quotes:    sweepDI.GetQuoteClient(sr),
			Tokens:    tokens,
			Strategy:  strategy,
			Allowance: app.NewAllowanceManager(tokens, log),
			Denylist:  sweepDI.GetDenylist(sr),
			Pacer:     ratelimit.NewPacer(cfg.Sweep.RequestDelay),
			Registry:  monolith.SharedAssetRegistry(sr),
			Pruner:    holdings,
			Refresher: holdings,
		}, app.OrchestratorConfig{
			ChainID: cfg.Ethereum.ChainID,
			Policy: app.AmountPolicy{
				Percent:         cfg.Sweep.Percent,
				SafetyMarginBps: cfg.Sweep.SafetyMarginBps,
			},
			NativeSentinel: cfg.Sweep.NativeSentinelAddress(),
		}, log)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return o
	})

	// Register SweepService (public - used by the CLI, API and scheduler)
	di.RegisterToken(c, sweepDI.SweepService, func(sr di.ServiceRegistry) *app.SweepService {
		return app.NewSweepService(
			di.GetToken(sr, sweepDI.Orchestrator),
			walletDI.GetWalletService(sr),
			holdingsAdapter(sr),
			monolith.SharedLogger(sr),
		)
	})

	return nil
}

func holdingsAdapter(sr di.ServiceRegistry) *infra.HoldingsAdapter {
	return infra.NewHoldingsAdapter(
		holdingsDI.GetHoldingsService(sr),
		walletDI.GetWalletService(sr),
	)
}

// Startup loads the persisted denylist and registers cleanup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if closer, ok := sweepDI.GetDenylistStore(mono.Services()).(io.Closer); ok {
		mono.OnClose(closer.Close)
	}

	if err := sweepDI.GetDenylist(mono.Services()).Load(ctx); err != nil {
		return err
	}

	svc := sweepDI.GetSweepService(mono.Services())
	log.Info(ctx, "sweep module started",
		"mode", string(svc.Mode()),
		"denylist_backend", cfg.Denylist.Backend,
		"denylisted", svc.Denylist().Len(),
		"request_delay", cfg.Sweep.RequestDelay.String(),
	)
	return nil
}
