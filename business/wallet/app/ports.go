// Package app contains application services and port definitions for the wallet context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/business/wallet/domain"
)

// Session is a signing-capable wallet: everything the sweep engine needs
// from a connected account.
type Session interface {
	// Address returns the account the session signs for.
	Address() common.Address

	// ReadContract performs an eth_call and returns the decoded outputs.
	ReadContract(ctx context.Context, call domain.ContractCall) ([]any, error)

	// WriteContract signs and broadcasts a contract method call.
	WriteContract(ctx context.Context, call domain.ContractCall) (common.Hash, error)

	// SendTransaction signs and broadcasts a raw transaction.
	SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error)

	// SignTypedData returns a 65-byte EIP-712 signature (v in {27, 28}).
	SignTypedData(ctx context.Context, data domain.TypedData) ([]byte, error)

	// WaitForReceipt blocks until the transaction is mined.
	WaitForReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
}

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current legacy gas price.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// GetFeeCaps retrieves EIP-1559 tip and fee caps.
	GetFeeCaps(ctx context.Context) (domain.FeeCaps, error)

	// EstimateGas estimates the gas needed for a transaction, margin included.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// ChainReader is the read side of the RPC node used for health checks.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}
