package erc20

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/circuitbreaker"
	"github.com/fd1az/token-sweeper/internal/logger"
)

var (
	token   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	owner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	spender = common.HexToAddress("0x0000000000001fF3684f28c67538d4D072C22734")
)

// fakeCaller answers eth_call by method selector.
type fakeCaller struct {
	mu      sync.Mutex
	abi     abi.ABI
	answers map[string][]byte
	errs    map[string]error
	calls   map[string]int
}

func newFakeCaller(t *testing.T) *fakeCaller {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(ABI))
	require.NoError(t, err)
	return &fakeCaller{
		abi:     parsed,
		answers: map[string][]byte{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeCaller) answer(t *testing.T, method string, values ...any) {
	t.Helper()
	out, err := f.abi.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	f.answers[method] = out
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, m := range f.abi.Methods {
		if !bytes.Equal(msg.Data[:4], m.ID) {
			continue
		}
		f.calls[name]++
		if err := f.errs[name]; err != nil {
			return nil, err
		}
		return f.answers[name], nil
	}
	return nil, errors.New("unknown selector")
}

type recordingSession struct {
	walletApp.Session
	call walletDomain.ContractCall
	err  error
}

func (s *recordingSession) WriteContract(_ context.Context, call walletDomain.ContractCall) (common.Hash, error) {
	s.call = call
	return common.HexToHash("0xbeef"), s.err
}

func newTestClient(t *testing.T, caller ethereum.ContractCaller) *Client {
	t.Helper()
	c, err := NewClient(caller, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)
	return c
}

func TestClient_DecimalsIsCached(t *testing.T) {
	caller := newFakeCaller(t)
	caller.answer(t, "decimals", uint8(6))
	c := newTestClient(t, caller)

	for i := 0; i < 3; i++ {
		d, err := c.Decimals(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), d)
	}
	assert.Equal(t, 1, caller.calls["decimals"])
}

func TestClient_Symbol(t *testing.T) {
	caller := newFakeCaller(t)
	caller.answer(t, "symbol", "DEGEN")
	c := newTestClient(t, caller)

	s, err := c.Symbol(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "DEGEN", s)

	_, err = c.Symbol(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, caller.calls["symbol"])
}

func TestClient_SymbolFallsBackToBytes32(t *testing.T) {
	caller := newFakeCaller(t)
	var raw [32]byte
	copy(raw[:], "MKR")
	caller.answers["symbol"] = raw[:]
	c := newTestClient(t, caller)

	s, err := c.Symbol(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "MKR", s)
}

func TestClient_Uints(t *testing.T) {
	caller := newFakeCaller(t)
	caller.answer(t, "allowance", big.NewInt(42))
	caller.answer(t, "balanceOf", big.NewInt(1_000))
	caller.answer(t, "totalSupply", big.NewInt(1_000_000))
	c := newTestClient(t, caller)
	ctx := context.Background()

	allowance, err := c.Allowance(ctx, token, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(42), allowance.Int64())

	balance, err := c.BalanceOf(ctx, token, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), balance.Int64())

	supply, err := c.TotalSupply(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), supply.Int64())
}

func TestClient_EmptyResultIsReadFailure(t *testing.T) {
	caller := newFakeCaller(t)
	c := newTestClient(t, caller)

	_, err := c.Decimals(context.Background(), token)
	assert.True(t, apperror.HasCode(err, apperror.CodeTokenReadFailed))
}

func TestClient_RevertsDoNotTripBreaker(t *testing.T) {
	caller := newFakeCaller(t)
	caller.errs["decimals"] = errors.New("execution reverted")
	c := newTestClient(t, caller)

	for i := 0; i < 10; i++ {
		_, err := c.Decimals(context.Background(), token)
		require.True(t, apperror.HasCode(err, apperror.CodeTokenReadFailed))
	}
	ok, _ := c.HealthCheck(context.Background())
	assert.True(t, ok)
}

func TestClient_RPCFailuresTripBreaker(t *testing.T) {
	caller := newFakeCaller(t)
	caller.errs["balanceOf"] = errors.New("connection refused")
	c := newTestClient(t, caller)

	for i := 0; i < 5; i++ {
		_, err := c.BalanceOf(context.Background(), token, owner)
		require.True(t, apperror.HasCode(err, apperror.CodeTokenReadFailed))
	}

	_, err := c.BalanceOf(context.Background(), token, owner)
	assert.True(t, apperror.HasCode(err, apperror.CodeCircuitOpen))
	assert.Equal(t, 5, caller.calls["balanceOf"])
	assert.Equal(t, circuitbreaker.StateOpen, c.cb.State())
}

func TestClient_ApproveWritesThroughSession(t *testing.T) {
	c := newTestClient(t, newFakeCaller(t))
	session := &recordingSession{}
	amount := big.NewInt(7)

	hash, err := c.Approve(context.Background(), session, token, spender, amount)
	require.NoError(t, err)

	assert.Equal(t, common.HexToHash("0xbeef"), hash)
	assert.Equal(t, token, session.call.Address)
	assert.Equal(t, "approve", session.call.Method)
	assert.Equal(t, []any{spender, amount}, session.call.Args)

	data, err := session.call.Pack()
	require.NoError(t, err)
	assert.Len(t, data, 4+32+32)
}

func TestClient_ApproveError(t *testing.T) {
	c := newTestClient(t, newFakeCaller(t))
	session := &recordingSession{err: errors.New("nonce too low")}

	_, err := c.Approve(context.Background(), session, token, spender, big.NewInt(1))
	assert.EqualError(t, err, "nonce too low")
}
