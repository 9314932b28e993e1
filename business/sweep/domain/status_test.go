package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/apperror"
)

var tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestProcessedToken_SettlesOnce(t *testing.T) {
	p := ProcessedToken{Address: tokenA, Status: StatusConfirming}

	require.NoError(t, p.Settle(StatusFailed, "boom"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "boom", p.Reason)

	assert.Error(t, p.Settle(StatusSuccess, ""), "terminal records must not transition again")
	assert.Equal(t, StatusFailed, p.Status)
}

func TestProcessedToken_RejectsNonTerminal(t *testing.T) {
	p := ProcessedToken{Address: tokenA, Status: StatusConfirming}
	assert.Error(t, p.Settle(StatusConfirming, ""))
}

func TestBatchStatus_CloneIsDeep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBatch(tokenA, ModeDirect, now)
	hash := common.HexToHash("0x01")
	b.ProcessedTokens = append(b.ProcessedTokens, ProcessedToken{Address: tokenA, Status: StatusConfirming, TxHash: &hash})

	snap := b.Clone()
	b.ProcessedTokens[0].Status = StatusSuccess
	*b.ProcessedTokens[0].TxHash = common.HexToHash("0x02")

	assert.Equal(t, StatusConfirming, snap.ProcessedTokens[0].Status)
	assert.Equal(t, common.HexToHash("0x01"), *snap.ProcessedTokens[0].TxHash)
	assert.Equal(t, b.ID, snap.ID)
}

func TestBatchStatus_FinishAndSummary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBatch(tokenA, ModePermit, now)
	b.ProcessedTokens = []ProcessedToken{
		{Status: StatusSuccess},
		{Status: StatusSkipped},
		{Status: StatusSkipped},
		{Status: StatusFailed},
	}

	assert.False(t, b.Done())
	b.Finish(now.Add(time.Second))

	assert.True(t, b.Done())
	assert.Equal(t, BatchSuccess, b.Status)
	assert.Equal(t, Summary{Total: 4, Success: 1, Skipped: 2, Failed: 1}, b.Summary())
}

func TestBatchStatus_Fail(t *testing.T) {
	b := NewBatch(tokenA, ModeDirect, time.Now())
	b.Fail(errors.New("no wallet"), time.Now())

	assert.Equal(t, BatchError, b.Status)
	assert.Equal(t, "no wallet", b.Error)
	assert.NotNil(t, b.FinishedAt)
}

func TestSweepRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SweepRequest
		wantErr bool
	}{
		{"ok", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1.5"}}, false},
		{"empty", SweepRequest{}, false},
		{"length mismatch", SweepRequest{Tokens: []common.Address{tokenA}}, true},
		{"symbols mismatch", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1"}, Symbols: []string{"A", "B"}}, true},
		{"bad amount", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"abc"}}, true},
		{"negative amount", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"-1"}}, true},
		{"exponent notation in range", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1.5e3"}}, false},
		{"huge exponent", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1e2147483640"}}, true},
		{"huge negative exponent", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1e-2147483640"}}, true},
		{"beyond uint256 digits", SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1e400"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidRequest))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("PERMIT")
	require.NoError(t, err)
	assert.Equal(t, ModePermit, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, m)

	_, err = ParseMode("flashloan")
	assert.Error(t, err)
}

func TestQuoteError_Text(t *testing.T) {
	assert.Equal(t, `{"reason":"bad token"}`, (&QuoteError{StatusCode: 400, Body: `{"reason":"bad token"}` + "\n"}).Error())
	assert.Equal(t, "quote service returned HTTP 500", (&QuoteError{StatusCode: 500}).Error())
}
