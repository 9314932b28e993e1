package app

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/asset"
)

func TestAmountPolicy(t *testing.T) {
	usdc := asset.USDC

	tests := []struct {
		name    string
		policy  AmountPolicy
		display string
		want    int64
	}{
		{"whole balance", DefaultAmountPolicy(), "12.345678", 12_345_678},
		{"truncates extra precision", DefaultAmountPolicy(), "1.0000009", 1_000_000},
		{"dust becomes zero", DefaultAmountPolicy(), "0.00000001", 0},
		{"percent", AmountPolicy{Percent: 25}, "4", 1_000_000},
		{"percent then margin", AmountPolicy{Percent: 50, SafetyMarginBps: 100}, "2", 990_000},
		{"margin rounds down", AmountPolicy{Percent: 100, SafetyMarginBps: 1}, "0.000001", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.BaseUnits(usdc, tt.display)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tt.want).String(), got.Raw().String())
		})
	}
}

func TestAmountPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultAmountPolicy().Validate())
	assert.NoError(t, AmountPolicy{Percent: 5, SafetyMarginBps: 9999}.Validate())
	assert.Error(t, AmountPolicy{Percent: 0}.Validate())
	assert.Error(t, AmountPolicy{Percent: 101}.Validate())
	assert.Error(t, AmountPolicy{Percent: 42}.Validate())
	assert.Error(t, AmountPolicy{Percent: 100, SafetyMarginBps: -1}.Validate())
	assert.Error(t, AmountPolicy{Percent: 100, SafetyMarginBps: 10_000}.Validate())
}

func TestAmountPolicy_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		display string
	}{
		{"huge exponent", "1e2147483640"},
		{"huge negative exponent", "1e-2147483640"},
		{"above uint256", "1e400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultAmountPolicy().BaseUnits(asset.WETH, tt.display)
			assert.ErrorIs(t, err, asset.ErrOutOfRange)
		})
	}
}
