package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

func TestClassify(t *testing.T) {
	quote503 := apperror.New(apperror.CodeQuoteNoLiquidity,
		apperror.WithCause(&domain.QuoteError{StatusCode: 503, Body: `{"message":"No liquidity"}`}))
	quote400 := apperror.New(apperror.CodeQuoteFailed,
		apperror.WithCause(&domain.QuoteError{StatusCode: 400, Body: "sellAmount too low"}))
	underflow := apperror.New(apperror.CodeTxSubmitFailed,
		apperror.WithCause(apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(errors.New("execution reverted: Arithmetic Underflow")))))

	tests := []struct {
		name string
		sig  Signal
		want Outcome
	}{
		{
			name: "receipt success",
			sig:  Signal{Stage: StageSwap, Receipt: &walletDomain.Receipt{Status: walletDomain.ReceiptSuccess, LogCount: 4}},
			want: Outcome{Status: domain.StatusSuccess},
		},
		{
			name: "reverted without logs",
			sig:  Signal{Stage: StageSwap, Receipt: &walletDomain.Receipt{Status: walletDomain.ReceiptReverted}},
			want: Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonLowLiquidity, Denylist: true},
		},
		{
			name: "reverted with logs",
			sig:  Signal{Stage: StageSwap, Receipt: &walletDomain.Receipt{Status: walletDomain.ReceiptReverted, LogCount: 2}},
			want: Outcome{Status: domain.StatusFailed, Reason: domain.ReasonTxReverted},
		},
		{
			name: "missing receipt",
			sig:  Signal{Stage: StageSwap},
			want: Outcome{Status: domain.StatusFailed, Reason: "missing transaction receipt"},
		},
		{
			name: "quote 503",
			sig:  Signal{Stage: StageQuote, Err: quote503},
			want: Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonNoLiquidity, Denylist: true, Prune: true},
		},
		{
			name: "bare 503 quote error",
			sig:  Signal{Stage: StageQuote, Err: &domain.QuoteError{StatusCode: 503}},
			want: Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonNoLiquidity, Denylist: true, Prune: true},
		},
		{
			name: "quote 400 keeps raw text",
			sig:  Signal{Stage: StageQuote, Err: quote400},
			want: Outcome{Status: domain.StatusFailed, Reason: "sellAmount too low"},
		},
		{
			name: "swap underflow",
			sig:  Signal{Stage: StageSwap, Err: underflow},
			want: Outcome{Status: domain.StatusSkipped, Reason: domain.ReasonArithmeticUnderflow},
		},
		{
			name: "approval error",
			sig:  Signal{Stage: StageApproval, Err: errors.New("insufficient funds for gas")},
			want: Outcome{Status: domain.StatusFailed, Reason: "insufficient funds for gas"},
		},
		{
			name: "underflow outside swap stage fails",
			sig:  Signal{Stage: StageApproval, Err: errors.New("arithmetic underflow")},
			want: Outcome{Status: domain.StatusFailed, Reason: "arithmetic underflow"},
		},
		{
			name: "unknown swap error",
			sig:  Signal{Stage: StageSwap, Err: errors.New("nonce too low")},
			want: Outcome{Status: domain.StatusFailed, Reason: "nonce too low"},
		},
		{
			name: "prepare error",
			sig:  Signal{Stage: StagePrepare, Err: apperror.New(apperror.CodeTokenReadFailed, apperror.WithMessage("decimals read failed"))},
			want: Outcome{Status: domain.StatusFailed, Reason: "decimals read failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sig))
		})
	}
}
