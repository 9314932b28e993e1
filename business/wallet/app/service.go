package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/internal/logger"
)

// WalletService exposes the active session, if any, to other modules.
type WalletService struct {
	session Session
	chain   ChainReader
	logger  logger.LoggerInterface
}

// NewWalletService creates a WalletService. session may be nil when no key
// is configured; sweeps then fail with a setup error.
func NewWalletService(session Session, chain ChainReader, log logger.LoggerInterface) *WalletService {
	return &WalletService{
		session: session,
		chain:   chain,
		logger:  log,
	}
}

// Session returns the active session.
func (s *WalletService) Session() (Session, bool) {
	return s.session, s.session != nil
}

// Address returns the session account, or the zero address.
func (s *WalletService) Address() common.Address {
	if s.session == nil {
		return common.Address{}
	}
	return s.session.Address()
}

// NativeBalance returns the account's gas-coin balance.
func (s *WalletService) NativeBalance(ctx context.Context) (*big.Int, error) {
	if s.session == nil {
		return big.NewInt(0), nil
	}
	return s.chain.BalanceAt(ctx, s.session.Address(), nil)
}

// HealthCheck reports RPC reachability. Its signature matches health.CheckFunc.
func (s *WalletService) HealthCheck(ctx context.Context) (bool, string) {
	n, err := s.chain.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn(ctx, "rpc health check failed", "error", err)
		return false, err.Error()
	}
	return true, fmt.Sprintf("block %d", n)
}
