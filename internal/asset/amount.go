package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: more decimals than the asset carries")
	ErrInvalidPercent  = errors.New("asset: percent must be within (0, 100]")
	ErrInvalidBps      = errors.New("asset: basis points must be within [0, 10000]")
	ErrOutOfRange      = errors.New("asset: amount does not fit in uint256")
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Display amounts are written with at most this many digits on either side
// of the decimal point (uint256 tops out at 78 digits).
const (
	maxExponent = 77
	maxDigits   = 2*maxExponent + 1
)

// MaxUint256 is the unlimited ERC-20 allowance.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Amount is an immutable non-negative quantity in base units.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount copies raw. A nil asset, nil raw or negative raw panics.
func NewAmount(a *Asset, raw *big.Int) Amount {
	switch {
	case a == nil:
		panic("asset: nil asset")
	case raw == nil:
		panic("asset: nil amount")
	case raw.Sign() < 0:
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: a}
}

// Raw returns a copy of the base-unit value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) IsZero() bool { return a.raw == nil || a.raw.Sign() == 0 }

// Percent keeps floor(a*p/100).
func (a Amount) Percent(p int) (Amount, error) {
	if p <= 0 || p > 100 {
		return Amount{}, ErrInvalidPercent
	}
	return a.scale(int64(p), 100), nil
}

// LessBps removes bps basis points, rounding down.
func (a Amount) LessBps(bps int) (Amount, error) {
	if bps < 0 || bps > BpsDenominator {
		return Amount{}, ErrInvalidBps
	}
	return a.scale(int64(BpsDenominator-bps), BpsDenominator), nil
}

func (a Amount) scale(num, den int64) Amount {
	if num == den {
		return a
	}
	v := new(big.Int).Mul(a.Raw(), big.NewInt(num))
	return Amount{raw: v.Quo(v, big.NewInt(den)), asset: a.asset}
}

// ToDecimal converts to display units.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.decimals))
}

// String renders "1.5 ETH".
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.ToDecimal().String() + " " + a.asset.symbol
}

// ParseString reads a display-unit decimal. Precision beyond the asset's
// decimals is an error.
func ParseString(a *Asset, s string) (Amount, error) {
	return parse(a, s, false)
}

// ParseStringTruncated reads a display-unit decimal, dropping precision
// beyond the asset's decimals. Dust below one base unit becomes zero.
func ParseStringTruncated(a *Asset, s string) (Amount, error) {
	return parse(a, s, true)
}

// CheckRange rejects a display amount whose exponent or digit count could
// never describe a uint256 base-unit value. It must run before Shift.
func CheckRange(d decimal.Decimal) error {
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return fmt.Errorf("%w: exponent %d", ErrOutOfRange, e)
	}
	if n := d.NumDigits(); n > maxDigits {
		return fmt.Errorf("%w: %d digits", ErrOutOfRange, n)
	}
	return nil
}

func parse(a *Asset, s string, truncate bool) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	if err := CheckRange(d); err != nil {
		return Amount{}, err
	}
	scaled := d.Shift(int32(a.decimals))
	whole := scaled.Truncate(0)
	if !truncate && !scaled.Equal(whole) {
		return Amount{}, fmt.Errorf("%w: %s has more than %d", ErrTooManyDecimals, s, a.decimals)
	}
	raw := whole.BigInt()
	if raw.Cmp(MaxUint256) > 0 {
		return Amount{}, fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	return Amount{raw: raw, asset: a}, nil
}
