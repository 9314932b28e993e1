// Package app contains application services and port definitions for the holdings context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenReader reads ERC-20 state.
type TokenReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Symbol(ctx context.Context, token common.Address) (string, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
}

// Denylist reports tokens excluded from sweeps.
type Denylist interface {
	Contains(token common.Address) bool
}
