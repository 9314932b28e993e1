// Package di contains dependency injection tokens for the sweep context.
package di

import (
	"github.com/fd1az/token-sweeper/business/sweep/app"
	"github.com/fd1az/token-sweeper/business/sweep/infra/erc20"
	"github.com/fd1az/token-sweeper/business/sweep/infra/zerox"
	"github.com/fd1az/token-sweeper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	SweepService   = di.NewToken[*app.SweepService]("sweep.SweepService")
	Denylist       = di.NewToken[*app.Denylist]("sweep.Denylist")
	TokenContracts = di.NewToken[*erc20.Client]("sweep.TokenContracts")
)

// Private dependency tokens - internal to sweep module
var (
	DenylistStore = di.NewToken[app.DenylistStore]("sweep:denylistStore")
	QuoteClient   = di.NewToken[*zerox.Client]("sweep:quoteClient")
	Orchestrator  = di.NewToken[*app.Orchestrator]("sweep:orchestrator")
)

// Helper functions for type-safe access
func GetSweepService(c di.ServiceRegistry) *app.SweepService {
	return di.GetToken(c, SweepService)
}

func GetDenylist(c di.ServiceRegistry) *app.Denylist {
	return di.GetToken(c, Denylist)
}

func GetTokenContracts(c di.ServiceRegistry) *erc20.Client {
	return di.GetToken(c, TokenContracts)
}

func GetQuoteClient(c di.ServiceRegistry) *zerox.Client {
	return di.GetToken(c, QuoteClient)
}

// GetDenylistStore returns the configured store, or nil for the in-memory backend.
func GetDenylistStore(c di.ServiceRegistry) app.DenylistStore {
	store, _ := c.Get(DenylistStore.Name()).(app.DenylistStore)
	return store
}
