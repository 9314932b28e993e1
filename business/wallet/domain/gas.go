package domain

import (
	"math/big"
	"time"
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Gwei      float64
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	gwei := new(big.Float).SetInt(wei)
	gwei.Quo(gwei, big.NewFloat(1e9))
	gweiFloat, _ := gwei.Float64()

	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Gwei:      gweiFloat,
		Timestamp: time.Now(),
	}
}

// FeeCaps are EIP-1559 fee parameters.
type FeeCaps struct {
	TipCap *big.Int
	FeeCap *big.Int
}

// NewFeeCaps derives the fee cap as 2*baseFee + tip, leaving headroom for
// several consecutive full blocks.
func NewFeeCaps(baseFee, tip *big.Int) FeeCaps {
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return FeeCaps{
		TipCap: new(big.Int).Set(tip),
		FeeCap: feeCap,
	}
}

// WithMargin adds percent% to a gas limit.
func WithMargin(gas uint64, percent int) uint64 {
	if percent <= 0 {
		return gas
	}
	return gas + gas*uint64(percent)/100
}
