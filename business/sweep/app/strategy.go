package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

const eip712DomainType = "EIP712Domain"

// SubmitStrategy turns an approved quote into the transaction to send.
type SubmitStrategy interface {
	Mode() domain.Mode
	Prepare(ctx context.Context, session walletApp.Session, q *domain.Quote) (walletDomain.TxRequest, error)
}

// NewStrategy returns the strategy for mode.
func NewStrategy(mode domain.Mode) (SubmitStrategy, error) {
	switch mode {
	case domain.ModeDirect:
		return DirectStrategy{}, nil
	case domain.ModePermit:
		return PermitStrategy{}, nil
	default:
		return nil, fmt.Errorf("sweep: no strategy for mode %q", mode)
	}
}

// DirectStrategy submits the quoted calldata unchanged. Gas is estimated by
// the session.
type DirectStrategy struct{}

// Mode implements SubmitStrategy.
func (DirectStrategy) Mode() domain.Mode { return domain.ModeDirect }

// Prepare implements SubmitStrategy.
func (DirectStrategy) Prepare(_ context.Context, _ walletApp.Session, q *domain.Quote) (walletDomain.TxRequest, error) {
	return walletDomain.TxRequest{
		To:    q.Transaction.To,
		Data:  q.Transaction.Data,
		Value: valueOrZero(q.Transaction.Value),
	}, nil
}

// PermitStrategy signs the quote's permit and appends the signature to the
// calldata. The quoted gas and gas price are used as-is.
type PermitStrategy struct{}

// Mode implements SubmitStrategy.
func (PermitStrategy) Mode() domain.Mode { return domain.ModePermit }

// Prepare implements SubmitStrategy.
func (PermitStrategy) Prepare(ctx context.Context, session walletApp.Session, q *domain.Quote) (walletDomain.TxRequest, error) {
	if q.Permit == nil {
		return walletDomain.TxRequest{}, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithMessage("quote has no permit payload"),
			apperror.WithContext(q.Token.Hex()))
	}

	sig, err := session.SignTypedData(ctx, StripDomainType(*q.Permit))
	if err != nil {
		return walletDomain.TxRequest{}, apperror.New(apperror.CodeSignatureFailed, apperror.WithCause(err))
	}

	return walletDomain.TxRequest{
		To:       q.Transaction.To,
		Data:     AppendSignature(q.Transaction.Data, sig),
		Value:    valueOrZero(q.Transaction.Value),
		Gas:      q.Transaction.Gas,
		GasPrice: q.Transaction.GasPrice,
	}, nil
}

// StripDomainType drops the EIP712Domain declaration; the signer derives it
// from the domain fields and the primary type picks the struct.
func StripDomainType(td walletDomain.TypedData) walletDomain.TypedData {
	types := make(apitypes.Types, len(td.Types))
	for name, fields := range td.Types {
		if name == eip712DomainType {
			continue
		}
		types[name] = fields
	}
	td.Types = types
	return td
}

// AppendSignature returns data || uint256(len(sig)) || sig.
func AppendSignature(data, sig []byte) []byte {
	out := make([]byte, 0, len(data)+common.HashLength+len(sig))
	out = append(out, data...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(sig))).Bytes(), common.HashLength)...)
	return append(out, sig...)
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
