package app

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

func permitPayload() walletDomain.TypedData {
	return walletDomain.TypedData{
		Domain: apitypes.TypedDataDomain{
			Name:              "Permit2",
			ChainId:           math.NewHexOrDecimal256(8453),
			VerifyingContract: "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		},
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
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
		},
		PrimaryType: "PermitTransferFrom",
		Message: apitypes.TypedDataMessage{
			"permitted": map[string]any{"token": tokenA.Hex(), "amount": "1000"},
			"spender":   router.Hex(),
			"nonce":     "1",
			"deadline":  "1700000000",
		},
	}
}

func TestAppendSignature_Layout(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56}
	sig := bytes.Repeat([]byte{0xab}, 65)

	out := AppendSignature(data, sig)

	require.Len(t, out, 3+32+65)
	assert.Equal(t, data, out[:3])
	assert.Equal(t, big.NewInt(65), new(big.Int).SetBytes(out[3:35]))
	assert.Equal(t, sig, out[35:])
	assert.Equal(t, []byte{0x12, 0x34, 0x56}, data, "input must not be modified")
}

func TestStripDomainType_KeepsOriginal(t *testing.T) {
	td := permitPayload()

	stripped := StripDomainType(td)

	assert.NotContains(t, stripped.Types, "EIP712Domain")
	assert.Contains(t, stripped.Types, "PermitTransferFrom")
	assert.Contains(t, stripped.Types, "TokenPermissions")
	assert.Contains(t, td.Types, "EIP712Domain")
	assert.Equal(t, td.PrimaryType, stripped.PrimaryType)
}

func TestDirectStrategy_PassesCalldataThrough(t *testing.T) {
	q := &domain.Quote{
		Token:       tokenA,
		Transaction: domain.QuoteTx{To: router, Data: []byte{0x01}, Value: big.NewInt(3), Gas: 99, GasPrice: big.NewInt(5)},
	}

	tx, err := DirectStrategy{}.Prepare(context.Background(), newFakeSession(), q)
	require.NoError(t, err)

	assert.Equal(t, walletDomain.TxRequest{To: router, Data: []byte{0x01}, Value: big.NewInt(3)}, tx)
}

func TestPermitStrategy_SignatureErrorIsCoded(t *testing.T) {
	permit := permitPayload()
	q := &domain.Quote{Token: tokenA, Permit: &permit}

	_, err := PermitStrategy{}.Prepare(context.Background(), failingSigner{newFakeSession()}, q)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSignatureFailed))
	assert.Equal(t, "user denied signature", apperror.CauseMessage(err))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(domain.ModePermit)
	require.NoError(t, err)
	assert.Equal(t, domain.ModePermit, s.Mode())

	s, err = NewStrategy(domain.ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDirect, s.Mode())

	_, err = NewStrategy("other")
	assert.Error(t, err)
}

type failingSigner struct {
	*fakeSession
}

func (failingSigner) SignTypedData(context.Context, walletDomain.TypedData) ([]byte, error) {
	return nil, errDenied
}

var errDenied = errors.New("user denied signature")
