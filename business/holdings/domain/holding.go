// Package domain contains the core domain types for the holdings context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Holding is one watch-list token balance of the owner.
type Holding struct {
	Token    common.Address `json:"token"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Balance  *big.Int       `json:"balance"`
	// Amount is Balance in display units.
	Amount decimal.Decimal `json:"amount"`
	// Share is Balance / totalSupply, zero when the supply read failed.
	Share decimal.Decimal `json:"share"`
}

// Snapshot is the owner's significant holdings at FetchedAt.
type Snapshot struct {
	Owner     common.Address `json:"owner"`
	Holdings  []Holding      `json:"holdings"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Without returns a copy of s minus token.
func (s *Snapshot) Without(token common.Address) *Snapshot {
	out := &Snapshot{Owner: s.Owner, FetchedAt: s.FetchedAt, Holdings: make([]Holding, 0, len(s.Holdings))}
	for _, h := range s.Holdings {
		if h.Token != token {
			out.Holdings = append(out.Holdings, h)
		}
	}
	return out
}

// Contains reports whether token is in the snapshot.
func (s *Snapshot) Contains(token common.Address) bool {
	for _, h := range s.Holdings {
		if h.Token == token {
			return true
		}
	}
	return false
}
