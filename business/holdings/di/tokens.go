// Package di contains dependency injection tokens for the holdings context.
package di

import (
	"github.com/fd1az/token-sweeper/business/holdings/app"
	"github.com/fd1az/token-sweeper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	HoldingsService = di.NewToken[*app.HoldingsService]("holdings.HoldingsService")
)

// Helper functions for type-safe access
func GetHoldingsService(c di.ServiceRegistry) *app.HoldingsService {
	return di.GetToken(c, HoldingsService)
}
