// Package asset models on-chain assets and their base-unit amounts.
// Amounts are carried as big.Int; decimal.Decimal only appears at the
// display boundary (user input, logs, UI).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ChainIDEthereum = 1
	ChainIDBase     = 8453
)

// Either address stands for the chain's gas coin. Aggregators expect the
// 0xEeee form as a buy token.
var (
	ZeroAddress      = common.Address{}
	EtherPlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
)

// IsNativeSentinel reports whether addr stands for the native coin.
func IsNativeSentinel(addr common.Address) bool {
	return addr == ZeroAddress || addr == EtherPlaceholder
}

// Base mainnet tokens offered as sweep targets.
var (
	AddrUSDCBase = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	AddrWETHBase = common.HexToAddress("0x4200000000000000000000000000000000000006")
	AddrPROBase  = common.HexToAddress("0xf65C3C30dD36b508E29a538b79b21E9B9E504e6c")

	ETH  = &Asset{id: ID{Chain: ChainIDBase}, symbol: "ETH", name: "Ethereum", decimals: 18}
	USDC = &Asset{id: TokenID(ChainIDBase, AddrUSDCBase), symbol: "USDC", name: "USD Coin", decimals: 6}
	WETH = &Asset{id: TokenID(ChainIDBase, AddrWETHBase), symbol: "WETH", name: "Wrapped Ether", decimals: 18}
	PRO  = &Asset{id: TokenID(ChainIDBase, AddrPROBase), symbol: "PRO", name: "Procoin", decimals: 18}
)

// ID keys an asset by chain and contract. The native coin has the zero
// address.
type ID struct {
	Chain   uint64
	Address common.Address
}

// TokenID builds the ID for a contract. Native sentinels collapse to the
// native ID.
func TokenID(chain uint64, addr common.Address) ID {
	if IsNativeSentinel(addr) {
		return ID{Chain: chain}
	}
	return ID{Chain: chain, Address: addr}
}

// IsNative reports whether id is the chain's gas coin.
func (id ID) IsNative() bool { return id.Address == ZeroAddress }

func (id ID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("%d/native", id.Chain)
	}
	return fmt.Sprintf("%d/%s", id.Chain, id.Address.Hex())
}

// Asset is token metadata. Identity is the ID; symbols are display only and
// need not be unique.
type Asset struct {
	id       ID
	symbol   string
	name     string
	decimals uint8
}

// NewToken describes an ERC-20 read from chain. An empty symbol renders as
// "???". More than 77 decimals cannot be represented in uint256 and panics.
func NewToken(chain uint64, addr common.Address, symbol string, decimals uint8) *Asset {
	if decimals > 77 {
		panic(fmt.Sprintf("asset: %d decimals out of range", decimals))
	}
	if symbol == "" {
		symbol = "???"
	}
	return &Asset{id: TokenID(chain, addr), symbol: symbol, decimals: decimals}
}

func (a *Asset) ID() ID                  { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) Address() common.Address { return a.id.Address }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) String() string          { return a.symbol }

// Name falls back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}
