package app

import (
	"fmt"

	"github.com/fd1az/token-sweeper/internal/asset"
)

// AmountPolicy converts display amounts to base units: truncate to the
// token's decimals, take Percent, then shrink by SafetyMarginBps.
type AmountPolicy struct {
	Percent         int
	SafetyMarginBps int
}

// DefaultAmountPolicy sweeps the whole balance with no margin.
func DefaultAmountPolicy() AmountPolicy {
	return AmountPolicy{Percent: 100}
}

// Validate checks the policy bounds. Percent moves in steps of 5.
func (p AmountPolicy) Validate() error {
	if p.Percent <= 0 || p.Percent > 100 || p.Percent%5 != 0 {
		return fmt.Errorf("sweep: percent must be a multiple of 5 in (0, 100], got %d", p.Percent)
	}
	if p.SafetyMarginBps < 0 || p.SafetyMarginBps >= asset.BpsDenominator {
		return fmt.Errorf("sweep: safety margin must be within [0, 10000) bps, got %d", p.SafetyMarginBps)
	}
	return nil
}

// BaseUnits converts display to base units of token. Dust below one base
// unit yields zero.
func (p AmountPolicy) BaseUnits(token *asset.Asset, display string) (asset.Amount, error) {
	amt, err := asset.ParseStringTruncated(token, display)
	if err != nil {
		return asset.Amount{}, err
	}
	if amt, err = amt.Percent(p.Percent); err != nil {
		return asset.Amount{}, err
	}
	return amt.LessBps(p.SafetyMarginBps)
}
