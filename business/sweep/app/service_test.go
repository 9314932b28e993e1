package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
)

type staticHoldings struct {
	candidates []Candidate
	err        error
	owner      common.Address
	target     common.Address
}

func (s *staticHoldings) Candidates(_ context.Context, owner, target common.Address) ([]Candidate, error) {
	s.owner, s.target = owner, target
	return s.candidates, s.err
}

func TestSweepService_RejectsConcurrentBatch(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	svc := NewSweepService(h.orch, fixedWallet{h.session}, nil, testLogger())

	release := make(chan struct{})
	entered := make(chan struct{})
	h.quotes.onQuote = func(domain.QuoteRequest) {
		close(entered)
		<-release
	}

	req := domain.SweepRequest{Tokens: []common.Address{tokenA}, Amounts: []string{"1"}, Target: asset.AddrUSDCBase}
	require.NoError(t, svc.Start(context.Background(), req))
	<-entered

	assert.True(t, svc.Running())
	_, err := svc.Sweep(context.Background(), req)
	assert.True(t, apperror.HasCode(err, apperror.CodeSweepInProgress))
	assert.True(t, apperror.HasCode(svc.Start(context.Background(), req), apperror.CodeSweepInProgress))

	current := svc.Current()
	require.Len(t, current.ProcessedTokens, 1)
	assert.Equal(t, domain.StatusConfirming, current.ProcessedTokens[0].Status)

	close(release)
	assert.Eventually(t, func() bool { return !svc.Running() }, time.Second, 5*time.Millisecond)

	final := svc.Current()
	assert.Equal(t, domain.BatchSuccess, final.Status)
	assert.Equal(t, domain.StatusSuccess, final.ProcessedTokens[0].Status)
}

func TestSweepService_IdleBeforeFirstBatch(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	svc := NewSweepService(h.orch, fixedWallet{h.session}, nil, testLogger())

	assert.Equal(t, domain.BatchIdle, svc.Current().Status)
	assert.False(t, svc.Running())
	assert.Equal(t, domain.ModeDirect, svc.Mode())
	assert.Same(t, h.denylist, svc.Denylist())
}

func TestSweepService_NoWallet(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	svc := NewSweepService(h.orch, fixedWallet{}, nil, testLogger())

	status, err := svc.Sweep(context.Background(), domain.SweepRequest{
		Tokens:  []common.Address{tokenA},
		Amounts: []string{"1"},
	})

	assert.True(t, apperror.HasCode(err, apperror.CodeNoWallet))
	assert.Equal(t, domain.BatchError, status.Status)
	assert.Equal(t, domain.BatchError, svc.Current().Status)
	assert.False(t, svc.Running(), "a failed batch releases the slot")
}

func TestSweepService_SubscribersReceiveSnapshots(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	svc := NewSweepService(h.orch, fixedWallet{h.session}, nil, testLogger())

	updates, cancel := svc.Subscribe()
	defer cancel()

	_, err := svc.Sweep(context.Background(), domain.SweepRequest{
		Tokens:  []common.Address{asset.ZeroAddress},
		Amounts: []string{"1"},
		Target:  asset.AddrUSDCBase,
	})
	require.NoError(t, err)

	var last domain.BatchStatus
	for len(updates) > 0 {
		last = <-updates
	}
	assert.Equal(t, domain.BatchSuccess, last.Status)
	require.Len(t, last.ProcessedTokens, 1)
	assert.Equal(t, domain.ReasonNativeToken, last.ProcessedTokens[0].Reason)

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestSweepService_SlowSubscriberKeepsNewest(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	svc := NewSweepService(h.orch, fixedWallet{h.session}, nil, testLogger())
	updates, cancel := svc.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		svc.OnUpdate(domain.BatchStatus{Status: domain.BatchConfirming, Error: string(rune('a' + i))})
	}

	var last domain.BatchStatus
	n := 0
	for len(updates) > 0 {
		last = <-updates
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
	assert.Equal(t, string(rune('a'+subscriberBuffer+4)), last.Error)
}

func TestSweepService_SweepHoldings(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)
	holdings := &staticHoldings{candidates: []Candidate{
		{Token: tokenA, Symbol: "AAA", Amount: "1"},
		{Token: tokenB, Symbol: "BBB", Amount: "2"},
	}}
	svc := NewSweepService(h.orch, fixedWallet{h.session}, holdings, testLogger())

	status, err := svc.SweepHoldings(context.Background(), asset.AddrUSDCBase)
	require.NoError(t, err)

	assert.Equal(t, wallet, holdings.owner)
	assert.Equal(t, asset.AddrUSDCBase, holdings.target)
	require.Len(t, status.ProcessedTokens, 2)
	assert.Equal(t, "AAA", status.ProcessedTokens[0].Symbol)
	assert.Equal(t, "2", status.ProcessedTokens[1].Amount)
}

func TestSweepService_HoldingsErrors(t *testing.T) {
	h := newHarness(t, domain.ModeDirect)

	_, err := NewSweepService(h.orch, fixedWallet{h.session}, nil, testLogger()).HoldingsRequest(context.Background(), asset.AddrUSDCBase)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))

	_, err = NewSweepService(h.orch, fixedWallet{}, &staticHoldings{}, testLogger()).HoldingsRequest(context.Background(), asset.AddrUSDCBase)
	assert.True(t, apperror.HasCode(err, apperror.CodeNoWallet))

	failing := &staticHoldings{err: errors.New("rpc down")}
	_, err = NewSweepService(h.orch, fixedWallet{h.session}, failing, testLogger()).HoldingsRequest(context.Background(), asset.AddrUSDCBase)
	assert.True(t, apperror.HasCode(err, apperror.CodeHoldingsFailed))
}
