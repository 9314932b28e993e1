package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/holdings/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/cache"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// DefaultTTL is how long a snapshot is served before balances are re-read.
const DefaultTTL = 5 * time.Minute

// Config holds the watch-list and the significance rule.
type Config struct {
	ChainID uint64
	Tokens  []common.Address
	TTL     time.Duration
	// MinHoldingRatio drops holdings below balance/totalSupply; zero keeps all.
	MinHoldingRatio float64
}

// HoldingsService serves the owner's significant holdings from a TTL cache.
type HoldingsService struct {
	cfg      Config
	minRatio decimal.Decimal
	reader   TokenReader
	denylist Denylist
	registry *asset.Registry

	snapshots *cache.Cache[common.Address, *domain.Snapshot]
	fetchMu   sync.Mutex

	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time
}

// NewHoldingsService creates a HoldingsService. denylist may be nil.
func NewHoldingsService(cfg Config, reader TokenReader, denylist Denylist, registry *asset.Registry, log logger.LoggerInterface) *HoldingsService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return &HoldingsService{
		cfg:       cfg,
		minRatio:  decimal.NewFromFloat(cfg.MinHoldingRatio),
		reader:    reader,
		denylist:  denylist,
		registry:  registry,
		snapshots: cache.New[common.Address, *domain.Snapshot](cfg.TTL),
		logger:    log,
		tracer:    otel.Tracer("holdings"),
		now:       time.Now,
	}
}

// Tokens returns the watch-list.
func (s *HoldingsService) Tokens() []common.Address {
	return append([]common.Address(nil), s.cfg.Tokens...)
}

// Snapshot returns the cached snapshot for owner, reading balances when the
// cache has none.
func (s *HoldingsService) Snapshot(ctx context.Context, owner common.Address) (*domain.Snapshot, error) {
	if snap, ok := s.snapshots.Get(ctx, owner); ok {
		return snap, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if snap, ok := s.snapshots.Get(ctx, owner); ok {
		return snap, nil
	}

	snap, err := s.fetch(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.snapshots.Set(ctx, owner, snap, s.cfg.TTL)
	return snap, nil
}

// Candidates returns the snapshot minus denylisted tokens and the target.
func (s *HoldingsService) Candidates(ctx context.Context, owner, target common.Address) ([]domain.Holding, error) {
	snap, err := s.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Holding, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		if h.Token == target || s.denied(h.Token) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Prune drops token from every cached snapshot, keeping each snapshot's
// original expiry.
func (s *HoldingsService) Prune(ctx context.Context, token common.Address) {
	for _, owner := range s.snapshots.Keys() {
		snap, ok := s.snapshots.Get(ctx, owner)
		if !ok || !snap.Contains(token) {
			continue
		}
		remaining := s.cfg.TTL - s.now().Sub(snap.FetchedAt)
		if remaining <= 0 {
			s.snapshots.Delete(ctx, owner)
			continue
		}
		s.snapshots.Set(ctx, owner, snap.Without(token), remaining)
		s.logger.Info(ctx, "token pruned from holdings", "owner", owner.Hex(), "token", token.Hex())
	}
}

// Refresh discards the owner's snapshot and reads balances again.
func (s *HoldingsService) Refresh(ctx context.Context, owner common.Address) (*domain.Snapshot, error) {
	s.snapshots.Delete(ctx, owner)
	return s.Snapshot(ctx, owner)
}

// Invalidate discards every cached snapshot.
func (s *HoldingsService) Invalidate() {
	s.snapshots.Clear()
}

// Close stops the cache janitor.
func (s *HoldingsService) Close() error {
	s.snapshots.Close()
	return nil
}

func (s *HoldingsService) fetch(ctx context.Context, owner common.Address) (*domain.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "holdings.fetch",
		trace.WithAttributes(
			attribute.String("owner", owner.Hex()),
			attribute.Int("watch_list", len(s.cfg.Tokens)),
		),
	)
	defer span.End()

	snap := &domain.Snapshot{Owner: owner, Holdings: []domain.Holding{}, FetchedAt: s.now()}

	var failures int
	var lastErr error
	for _, token := range s.cfg.Tokens {
		if s.denied(token) {
			continue
		}

		h, keep, err := s.readHolding(ctx, owner, token)
		if err != nil {
			failures++
			lastErr = err
			s.logger.Warn(ctx, "holding read failed", "token", token.Hex(), "error", err)
			continue
		}
		if keep {
			snap.Holdings = append(snap.Holdings, h)
		}
	}

	if len(s.cfg.Tokens) > 0 && failures == len(s.cfg.Tokens) {
		span.SetStatus(codes.Error, "all reads failed")
		return nil, apperror.New(apperror.CodeHoldingsFailed,
			apperror.WithCause(lastErr),
			apperror.WithContext(owner.Hex()))
	}

	span.SetAttributes(attribute.Int("holdings", len(snap.Holdings)))
	s.logger.Debug(ctx, "holdings fetched", "owner", owner.Hex(), "holdings", len(snap.Holdings), "failures", failures)
	return snap, nil
}

// readHolding returns keep=false for zero and insignificant balances.
func (s *HoldingsService) readHolding(ctx context.Context, owner, token common.Address) (domain.Holding, bool, error) {
	balance, err := s.reader.BalanceOf(ctx, token, owner)
	if err != nil {
		return domain.Holding{}, false, err
	}
	if balance.Sign() == 0 {
		return domain.Holding{}, false, nil
	}

	meta, err := s.resolve(ctx, token)
	if err != nil {
		return domain.Holding{}, false, err
	}

	h := domain.Holding{
		Token:    token,
		Symbol:   meta.Symbol(),
		Decimals: meta.Decimals(),
		Balance:  balance,
		Amount:   asset.NewAmount(meta, balance).ToDecimal(),
	}

	if s.minRatio.IsPositive() {
		share, ok := s.share(ctx, token, balance)
		h.Share = share
		if ok && share.LessThan(s.minRatio) {
			return h, false, nil
		}
	}
	return h, true, nil
}

// share is balance/totalSupply. ok=false when the supply is unknown, which
// counts as significant.
func (s *HoldingsService) share(ctx context.Context, token common.Address, balance *big.Int) (decimal.Decimal, bool) {
	supply, err := s.reader.TotalSupply(ctx, token)
	if err != nil || supply.Sign() == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(balance, 0).Div(decimal.NewFromBigInt(supply, 0)), true
}

func (s *HoldingsService) resolve(ctx context.Context, token common.Address) (*asset.Asset, error) {
	if a, ok := s.registry.GetToken(s.cfg.ChainID, token); ok {
		return a, nil
	}

	decimals, err := s.reader.Decimals(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	symbol, err := s.reader.Symbol(ctx, token)
	if err != nil || symbol == "" {
		symbol = token.Hex()[:8]
	}

	a := asset.NewToken(s.cfg.ChainID, token, symbol, decimals)
	s.registry.Upsert(a)
	return a, nil
}

func (s *HoldingsService) denied(token common.Address) bool {
	return s.denylist != nil && s.denylist.Contains(token)
}
