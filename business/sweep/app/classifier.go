package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

// Stage is the pipeline step that produced a terminal signal.
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageQuote    Stage = "quote"
	StageApproval Stage = "approval"
	StageSwap     Stage = "swap"
)

// Signal is the terminal observation for one token attempt: an error, or
// the swap receipt.
type Signal struct {
	Stage   Stage
	Err     error
	Receipt *walletDomain.Receipt
}

// Outcome is the classified result with its side effects.
type Outcome struct {
	Status domain.TokenStatus
	Reason string
	// Denylist excludes the token from future batches.
	Denylist bool
	// Prune removes the token from the cached holdings snapshot.
	Prune bool
}

// Classify maps a signal to exactly one outcome. Unknown errors fail with
// the underlying message.
func Classify(sig Signal) Outcome {
	if sig.Err != nil {
		return classifyError(sig.Stage, sig.Err)
	}

	switch {
	case sig.Receipt == nil:
		return Outcome{Status: domain.StatusFailed, Reason: "missing transaction receipt"}
	case sig.Receipt.Succeeded():
		return Outcome{Status: domain.StatusSuccess}
	case sig.Receipt.Status == walletDomain.ReceiptReverted && sig.Receipt.LogCount == 0:
		return Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonLowLiquidity, Denylist: true}
	default:
		return Outcome{Status: domain.StatusFailed, Reason: domain.ReasonTxReverted}
	}
}

func classifyError(stage Stage, err error) Outcome {
	switch stage {
	case StageQuote:
		if IsNoLiquidity(err) {
			return Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonNoLiquidity, Denylist: true, Prune: true}
		}
	case StageSwap:
		if IsArithmeticUnderflow(err) {
			return Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonArithmeticUnderflow}
		}
	}
	return Outcome{Status: domain.StatusFailed, Reason: failureText(err)}
}

// IsNoLiquidity reports a quote answered with HTTP 503 or liquidityAvailable:false.
func IsNoLiquidity(err error) bool {
	if apperror.HasCode(err, apperror.CodeQuoteNoLiquidity) {
		return true
	}
	var qe *domain.QuoteError
	return errors.As(err, &qe) && qe.StatusCode == http.StatusServiceUnavailable
}

// IsArithmeticUnderflow reports a swap rejected by the token's own math,
// typically a fee-on-transfer token.
func IsArithmeticUnderflow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "arithmetic underflow")
}

func failureText(err error) string {
	if msg := apperror.CauseMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}
