package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
)

// SweepRequest is an ordered list of tokens with display-unit amounts, all
// swapped into Target. Entries equal to Target must be filtered by the caller.
type SweepRequest struct {
	Tokens  []common.Address
	Amounts []string
	// Symbols is optional; when set it is parallel to Tokens.
	Symbols []string
	Target  common.Address
}

// Validate checks the request shape before any network call.
func (r SweepRequest) Validate() error {
	if len(r.Tokens) != len(r.Amounts) {
		return apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d amounts", len(r.Tokens), len(r.Amounts))))
	}
	if len(r.Symbols) != 0 && len(r.Symbols) != len(r.Tokens) {
		return apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d symbols", len(r.Tokens), len(r.Symbols))))
	}
	for i, a := range r.Amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return apperror.New(apperror.CodeInvalidRequest,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("amount %d %q", i, a)))
		}
		if d.IsNegative() {
			return apperror.New(apperror.CodeInvalidRequest,
				apperror.WithContext(fmt.Sprintf("amount %d is negative", i)))
		}
		if err := asset.CheckRange(d); err != nil {
			return apperror.New(apperror.CodeInvalidRequest,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("amount %d %q", i, a)))
		}
	}
	return nil
}

// SymbolAt returns the caller-supplied symbol for entry i, if any.
func (r SweepRequest) SymbolAt(i int) string {
	if i < len(r.Symbols) {
		return r.Symbols[i]
	}
	return ""
}
