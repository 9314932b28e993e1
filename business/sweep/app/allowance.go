package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// AllowanceManager makes sure a spender may move the sell amount.
type AllowanceManager struct {
	tokens TokenContracts
	logger logger.LoggerInterface
}

// NewAllowanceManager creates an AllowanceManager.
func NewAllowanceManager(tokens TokenContracts, log logger.LoggerInterface) *AllowanceManager {
	return &AllowanceManager{tokens: tokens, logger: log}
}

// Ensure approves spender for the maximum amount when the current allowance
// is below amount, and waits for the approval to be mined. It returns the
// approval hash, or nil when no approval was needed.
func (m *AllowanceManager) Ensure(
	ctx context.Context,
	session walletApp.Session,
	token, spender common.Address,
	amount *big.Int,
) (*common.Hash, error) {
	current, err := m.tokens.Allowance(ctx, token, session.Address(), spender)
	if err != nil {
		return nil, err
	}
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}

	m.logger.Info(ctx, "approving spender",
		"token", token.Hex(),
		"spender", spender.Hex(),
		"allowance", current.String(),
		"required", amount.String())

	hash, err := m.tokens.Approve(ctx, session, token, spender, asset.MaxUint256)
	if err != nil {
		return nil, apperror.New(apperror.CodeApprovalFailed, apperror.WithCause(err), apperror.WithContext(token.Hex()))
	}

	receipt, err := session.WaitForReceipt(ctx, hash)
	if err != nil {
		return &hash, apperror.New(apperror.CodeApprovalFailed, apperror.WithCause(err), apperror.WithContext(token.Hex()))
	}
	if !receipt.Succeeded() {
		return &hash, apperror.New(apperror.CodeApprovalFailed,
			apperror.WithMessage("approval reverted"),
			apperror.WithContext(hash.Hex()))
	}

	return &hash, nil
}
