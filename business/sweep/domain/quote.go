package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
)

// Mode selects how a quoted swap is submitted. One batch never mixes modes.
type Mode string

const (
	// ModeDirect approves the spender and sends the quoted calldata as-is.
	ModeDirect Mode = "direct"
	// ModePermit signs the quote's EIP-712 permit and appends the signature.
	ModePermit Mode = "permit"
)

// ParseMode parses a configured submission mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDirect, "":
		return ModeDirect, nil
	case ModePermit:
		return ModePermit, nil
	default:
		return "", fmt.Errorf("sweep: unknown submission mode %q", s)
	}
}

// QuoteRequest is one firm-quote request to the aggregator.
type QuoteRequest struct {
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount *big.Int
	Taker      common.Address
}

// QuoteTx is the prepared swap transaction returned by the aggregator.
type QuoteTx struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// Quote is produced once per token per sweep and discarded after submission.
type Quote struct {
	Token      common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
	// AllowanceTarget is the spender that must be approved, if any.
	AllowanceTarget *common.Address
	Transaction     QuoteTx
	// Permit is set in permit mode and must be signed before submission.
	Permit *walletDomain.TypedData
}

// QuoteError is a non-2xx answer from the quote service. Its text is the
// response body, shown to users verbatim.
type QuoteError struct {
	StatusCode int
	Body       string
}

func (e *QuoteError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("quote service returned HTTP %d", e.StatusCode)
}
