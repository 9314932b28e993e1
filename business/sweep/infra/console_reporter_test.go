package infra

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/asset"
)

func TestConsoleReporter_PrintsEachTransitionOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, nil, asset.ChainIDBase)
	r.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	batch := domain.NewBatch(asset.AddrUSDCBase, domain.ModeDirect, start)
	token := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	batch.ProcessedTokens = append(batch.ProcessedTokens, domain.ProcessedToken{
		Address: token, Symbol: "DEGEN", Amount: "12.5", Status: domain.StatusConfirming,
	})
	r.OnUpdate(batch.Clone())
	r.OnUpdate(batch.Clone())

	hash := common.HexToHash("0x01")
	batch.ProcessedTokens[0].TxHash = &hash
	require.NoError(t, batch.ProcessedTokens[0].Settle(domain.StatusSuccess, ""))
	r.OnUpdate(batch.Clone())

	batch.Finish(start.Add(3 * time.Second))
	r.OnUpdate(batch.Clone())

	out := buf.String()
	assert.Contains(t, out, "Target:   USDC ("+asset.AddrUSDCBase.Hex()+")")
	assert.Equal(t, 1, strings.Count(out, "confirming"))
	assert.Contains(t, out, "success    tx "+hash.Hex())
	assert.Contains(t, out, "SWEEP COMPLETE in 3s: 1 tokens, 1 swapped, 0 skipped, 0 failed")
}

func TestConsoleReporter_BatchError(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, nil, asset.ChainIDBase)

	batch := domain.NewBatch(common.HexToAddress("0x1234"), domain.ModePermit, time.Now())
	batch.Fail(errors.New("no wallet connected"), time.Now())
	r.OnUpdate(batch.Clone())

	out := buf.String()
	assert.Contains(t, out, "Target:   "+common.HexToAddress("0x1234").Hex())
	assert.Contains(t, out, "SWEEP FAILED: no wallet connected")
}

func TestConsoleReporter_ResetsOnNewBatch(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, nil, asset.ChainIDBase)
	token := domain.ProcessedToken{Address: common.HexToAddress("0xa1"), Amount: "1", Status: domain.StatusSkipped, Reason: domain.ReasonNoLiquidity}

	for i := 0; i < 2; i++ {
		b := domain.NewBatch(asset.AddrUSDCBase, domain.ModeDirect, time.Now())
		b.ProcessedTokens = append(b.ProcessedTokens, token)
		r.OnUpdate(b.Clone())
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "skipped    no liquidity"))
}
