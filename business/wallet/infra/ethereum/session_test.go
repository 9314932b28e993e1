package ethereum

import (
	"context"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// Well-known test key (hardhat account #0).
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeClient struct {
	mu sync.Mutex

	callResult  []byte
	callMsgs    []ethereum.CallMsg
	nonce       uint64
	baseFee     *big.Int
	tip         *big.Int
	gasPrice    *big.Int
	estimate    uint64
	estimateErr error
	estimates   int
	sent        []*types.Transaction
	receipts    []*types.Receipt // nil entries mean not yet mined
	receiptIdx  int
}

func (f *fakeClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callMsgs = append(f.callMsgs, msg)
	return f.callResult, nil
}

func (f *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptIdx >= len(f.receipts) {
		return nil, ethereum.NotFound
	}
	r := f.receipts[f.receiptIdx]
	f.receiptIdx++
	if r == nil {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return f.tip, nil
}

func (f *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates++
	return f.estimate, f.estimateErr
}

func newTestSession(t *testing.T, client *fakeClient, cfg SessionConfig) *LocalSession {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	oracle, err := NewGasOracle(client, DefaultGasOracleConfig(), log)
	require.NoError(t, err)
	t.Cleanup(func() { oracle.Close() })

	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(8453)
	}
	s, err := NewLocalSession(client, oracle, testKey, cfg, log)
	require.NoError(t, err)
	return s
}

func TestNewLocalSession_InvalidKey(t *testing.T) {
	_, err := NewLocalSession(&fakeClient{}, nil, "nope", SessionConfig{ChainID: big.NewInt(1)}, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPrivateKey))
}

func TestLocalSession_Address(t *testing.T) {
	s := newTestSession(t, &fakeClient{}, SessionConfig{})
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())
}

func TestLocalSession_SendTransaction_DynamicFee(t *testing.T) {
	client := &fakeClient{
		nonce:    7,
		baseFee:  big.NewInt(100),
		tip:      big.NewInt(2),
		estimate: 100_000,
	}
	s := newTestSession(t, client, SessionConfig{})

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	hash, err := s.SendTransaction(context.Background(), domain.TxRequest{To: to, Data: []byte{0xde, 0xad}})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas(), "estimate plus 10% margin")
	assert.Equal(t, int64(202), tx.GasFeeCap().Int64())
	assert.Equal(t, int64(2), tx.GasTipCap().Int64())
	assert.Equal(t, to, *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}

func TestLocalSession_SendTransaction_LegacyWithQuotedGas(t *testing.T) {
	client := &fakeClient{nonce: 1}
	s := newTestSession(t, client, SessionConfig{})

	_, err := s.SendTransaction(context.Background(), domain.TxRequest{
		To:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Gas:      250_000,
		GasPrice: big.NewInt(5_000_000),
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(250_000), tx.Gas())
	assert.Equal(t, int64(5_000_000), tx.GasPrice().Int64())
	assert.Equal(t, 0, client.estimates, "quoted gas must not be re-estimated")
}

func TestLocalSession_SendTransaction_EstimateErrorKeepsReason(t *testing.T) {
	client := &fakeClient{
		estimateErr: &revertError{"execution reverted: arithmetic underflow or overflow"},
	}
	s := newTestSession(t, client, SessionConfig{})

	_, err := s.SendTransaction(context.Background(), domain.TxRequest{To: common.HexToAddress("0x01")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arithmetic underflow")
	assert.True(t, apperror.HasCode(err, apperror.CodeGasEstimationFailed))
	assert.Empty(t, client.sent)
}

type revertError struct{ msg string }

func (e *revertError) Error() string { return e.msg }

func TestLocalSession_ReadContract(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"}]`))
	require.NoError(t, err)

	out, err := parsed.Methods["decimals"].Outputs.Pack(uint8(6))
	require.NoError(t, err)

	client := &fakeClient{callResult: out}
	s := newTestSession(t, client, SessionConfig{})

	token := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	values, err := s.ReadContract(context.Background(), domain.ContractCall{
		Address: token,
		ABI:     &parsed,
		Method:  "decimals",
	})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint8(6), values[0])

	require.Len(t, client.callMsgs, 1)
	assert.Equal(t, token, *client.callMsgs[0].To)
	assert.Equal(t, parsed.Methods["decimals"].ID, client.callMsgs[0].Data)
}

func TestLocalSession_WaitForReceipt(t *testing.T) {
	hash := common.HexToHash("0xabc")
	client := &fakeClient{
		receipts: []*types.Receipt{nil, nil, {
			TxHash:      hash,
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(99),
		}},
	}
	s := newTestSession(t, client, SessionConfig{
		ReceiptTimeout:      time.Second,
		ReceiptPollInterval: time.Millisecond,
	})

	r, err := s.WaitForReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptReverted, r.Status)
	assert.Equal(t, 0, r.LogCount)
	assert.Equal(t, uint64(99), r.BlockNumber)
	assert.False(t, r.Succeeded())
}

func TestLocalSession_WaitForReceipt_Timeout(t *testing.T) {
	s := newTestSession(t, &fakeClient{}, SessionConfig{
		ReceiptTimeout:      30 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
	})

	_, err := s.WaitForReceipt(context.Background(), common.HexToHash("0x1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeTxReceiptTimeout))
}

func permitTypedData(withDomainType bool) domain.TypedData {
	types := apitypes.Types{
		"PermitTransferFrom": {
			{Name: "permitted", Type: "TokenPermissions"},
			{Name: "spender", Type: "address"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
		"TokenPermissions": {
			{Name: "token", Type: "address"},
			{Name: "amount", Type: "uint256"},
		},
	}
	if withDomainType {
		// Deliberately wrong: signers must ignore the supplied declaration.
		types["EIP712Domain"] = []apitypes.Type{{Name: "name", Type: "bytes32"}}
	}

	return domain.TypedData{
		Domain: apitypes.TypedDataDomain{
			Name:              "Permit2",
			ChainId:           math.NewHexOrDecimal256(8453),
			VerifyingContract: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		},
		Types:       types,
		PrimaryType: "PermitTransferFrom",
		Message: apitypes.TypedDataMessage{
			"permitted": map[string]any{
				"token":  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				"amount": "1000000",
			},
			"spender":  "0x0000000000001fF3684f28c67538d4D072C22734",
			"nonce":    "1",
			"deadline": "1900000000",
		},
	}
}

func TestLocalSession_SignTypedData_Recovers(t *testing.T) {
	s := newTestSession(t, &fakeClient{}, SessionConfig{})

	sig, err := s.SignTypedData(context.Background(), permitTypedData(false))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	hash, err := typedDataHash(permitTypedData(false))
	require.NoError(t, err)

	raw := make([]byte, 65)
	copy(raw, sig)
	raw[64] -= 27

	pub, err := crypto.SigToPub(hash, raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestTypedDataHash_IgnoresSuppliedDomainType(t *testing.T) {
	plain, err := typedDataHash(permitTypedData(false))
	require.NoError(t, err)

	withDomain, err := typedDataHash(permitTypedData(true))
	require.NoError(t, err)

	assert.Equal(t, plain, withDomain)
}

func TestTypedDataHash_UnknownPrimaryType(t *testing.T) {
	data := permitTypedData(false)
	data.PrimaryType = "Missing"

	_, err := typedDataHash(data)
	assert.Error(t, err)
}
