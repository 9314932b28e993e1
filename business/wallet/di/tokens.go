// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/token-sweeper/business/wallet/app"
	"github.com/fd1az/token-sweeper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	WalletService = di.NewToken[*app.WalletService]("wallet.WalletService")
)

// Private dependency tokens - internal to wallet module
var (
	GasOracle = di.NewToken[app.GasOracle]("wallet:gasOracle")
	Session   = di.NewToken[app.Session]("wallet:session")
)

// Helper functions for type-safe access
func GetWalletService(c di.ServiceRegistry) *app.WalletService {
	return di.GetToken(c, WalletService)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}
