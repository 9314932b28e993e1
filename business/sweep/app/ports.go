// Package app contains application services and port definitions for the sweep context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
)

// QuoteClient requests firm swap quotes from the aggregator.
type QuoteClient interface {
	// Quote returns a quote or an error. A no-liquidity answer is reported
	// with apperror.CodeQuoteNoLiquidity.
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
}

// TokenContracts reads and approves ERC-20 tokens.
type TokenContracts interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Symbol(ctx context.Context, token common.Address) (string, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// Approve sends approve(spender, amount) from the session account.
	Approve(ctx context.Context, session walletApp.Session, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

// DenylistStore persists denylisted tokens across restarts.
type DenylistStore interface {
	Load(ctx context.Context) ([]common.Address, error)
	Append(ctx context.Context, token common.Address) error
}

// HoldingsPruner drops a token from the cached significant-holdings snapshot.
type HoldingsPruner interface {
	Prune(ctx context.Context, token common.Address)
}

// Refresher reloads balances once a batch completes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Pacer throttles the pipeline between tokens.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Observer receives a snapshot after every batch update.
type Observer interface {
	OnUpdate(status domain.BatchStatus)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(status domain.BatchStatus)

// OnUpdate calls f.
func (f ObserverFunc) OnUpdate(status domain.BatchStatus) { f(status) }

// Candidate is a token eligible for an unattended sweep.
type Candidate struct {
	Token  common.Address
	Symbol string
	Amount string
}

// HoldingsSource lists the wallet's sweepable holdings.
type HoldingsSource interface {
	Candidates(ctx context.Context, owner, target common.Address) ([]Candidate, error)
}

// WalletProvider exposes the active signing session, if any.
type WalletProvider interface {
	Session() (walletApp.Session, bool)
}
