// Package wallet implements the wallet bounded context: the signing session
// and gas pricing over the configured RPC node.
package wallet

import (
	"context"
	"io"
	"math/big"

	"github.com/fd1az/token-sweeper/business/wallet/app"
	walletDI "github.com/fd1az/token-sweeper/business/wallet/di"
	"github.com/fd1az/token-sweeper/business/wallet/infra/ethereum"
	"github.com/fd1az/token-sweeper/internal/di"
	"github.com/fd1az/token-sweeper/internal/monolith"
)

// Module implements the wallet bounded context.
type Module struct{}

// Name identifies the module in startup logs.
func (m *Module) Name() string { return "wallet" }

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register GasOracle (private - internal dependency)
	di.RegisterToken(c, walletDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := monolith.SharedConfig(sr)
		log := monolith.SharedLogger(sr)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		oracleCfg.GasMarginPercent = cfg.Ethereum.GasMarginPercent

		oracle, err := ethereum.NewGasOracle(monolith.SharedEthClient(sr), oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register Session (private - nil when no key is configured)
	di.RegisterToken(c, walletDI.Session, func(sr di.ServiceRegistry) app.Session {
		cfg := monolith.SharedConfig(sr)
		log := monolith.SharedLogger(sr)

		if cfg.Ethereum.PrivateKey == "" {
			return nil
		}

		session, err := ethereum.NewLocalSession(
			monolith.SharedEthClient(sr),
			walletDI.GetGasOracle(sr),
			cfg.Ethereum.PrivateKey,
			ethereum.SessionConfig{
				ChainID:             new(big.Int).SetUint64(cfg.Ethereum.ChainID),
				ReceiptTimeout:      cfg.Ethereum.ReceiptTimeout,
				ReceiptPollInterval: cfg.Ethereum.ReceiptPollInterval,
			},
			log,
		)
		if err != nil {
			log.Error(context.Background(), "wallet session unavailable", "error", err)
			return nil
		}
		return session
	})

	// Register WalletService (public - exposed to other modules)
	di.RegisterToken(c, walletDI.WalletService, func(sr di.ServiceRegistry) *app.WalletService {
		var session app.Session
		if s, ok := sr.Get(walletDI.Session.Name()).(app.Session); ok {
			session = s
		}
		return app.NewWalletService(session, monolith.SharedEthClient(sr), monolith.SharedLogger(sr))
	})

	return nil
}

// Startup resolves the session and registers cleanup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := walletDI.GetWalletService(mono.Services())
	if closer, ok := walletDI.GetGasOracle(mono.Services()).(io.Closer); ok {
		mono.OnClose(closer.Close)
	}

	if _, ok := svc.Session(); !ok {
		log.Warn(ctx, "no wallet session configured, sweeps will fail until a private key is set")
	} else {
		log.Info(ctx, "wallet module started", "address", svc.Address().Hex())
	}
	return nil
}
