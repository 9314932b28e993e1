package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/logger"
)

const subscriberBuffer = 16

// SweepService is the entry point used by the CLI, the API and the
// scheduler. It allows one batch in flight and fans snapshots out to
// subscribers.
type SweepService struct {
	orchestrator *Orchestrator
	wallet       WalletProvider
	holdings     HoldingsSource
	logger       logger.LoggerInterface

	mu          sync.Mutex
	running     bool
	current     domain.BatchStatus
	subscribers map[chan domain.BatchStatus]struct{}
}

// NewSweepService creates a SweepService. holdings may be nil, which
// disables SweepHoldings.
func NewSweepService(o *Orchestrator, wallet WalletProvider, holdings HoldingsSource, log logger.LoggerInterface) *SweepService {
	return &SweepService{
		orchestrator: o,
		wallet:       wallet,
		holdings:     holdings,
		logger:       log,
		current:      domain.IdleBatch(),
		subscribers:  make(map[chan domain.BatchStatus]struct{}),
	}
}

// Sweep runs a batch to completion. It fails with CodeSweepInProgress when
// another batch is running.
func (s *SweepService) Sweep(ctx context.Context, req domain.SweepRequest, observers ...Observer) (domain.BatchStatus, error) {
	if err := s.acquire(); err != nil {
		return domain.BatchStatus{}, err
	}
	defer s.release()

	return s.run(ctx, req, observers)
}

// Start runs a batch in the background and returns once the batch is
// registered as running. Progress is available through Current and
// Subscribe.
func (s *SweepService) Start(ctx context.Context, req domain.SweepRequest) error {
	if err := s.acquire(); err != nil {
		return err
	}

	go func() {
		defer s.release()
		if _, err := s.run(ctx, req, nil); err != nil {
			s.logger.Warn(ctx, "background sweep aborted", "error", err)
		}
	}()
	return nil
}

// SweepHoldings sweeps every eligible holding of the session account into
// target.
func (s *SweepService) SweepHoldings(ctx context.Context, target common.Address) (domain.BatchStatus, error) {
	req, err := s.HoldingsRequest(ctx, target)
	if err != nil {
		return domain.BatchStatus{}, err
	}
	return s.Sweep(ctx, req)
}

// HoldingsRequest builds a request from the eligible holdings.
func (s *SweepService) HoldingsRequest(ctx context.Context, target common.Address) (domain.SweepRequest, error) {
	if s.holdings == nil {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithMessage("no holdings source configured"))
	}
	session, ok := s.wallet.Session()
	if !ok {
		return domain.SweepRequest{}, apperror.New(apperror.CodeNoWallet)
	}

	candidates, err := s.holdings.Candidates(ctx, session.Address(), target)
	if err != nil {
		return domain.SweepRequest{}, apperror.Wrap(err, apperror.CodeHoldingsFailed, "")
	}

	req := domain.SweepRequest{Target: target}
	for _, c := range candidates {
		req.Tokens = append(req.Tokens, c.Token)
		req.Amounts = append(req.Amounts, c.Amount)
		req.Symbols = append(req.Symbols, c.Symbol)
	}
	return req, nil
}

// Current returns the latest snapshot: idle before the first batch, then
// the running or last finished batch.
func (s *SweepService) Current() domain.BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Running reports whether a batch is in flight.
func (s *SweepService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Denylist exposes the denylist used by the pipeline.
func (s *SweepService) Denylist() *Denylist {
	return s.orchestrator.Denylist()
}

// Mode returns the submission mode.
func (s *SweepService) Mode() domain.Mode {
	return s.orchestrator.Mode()
}

// Subscribe returns a channel of snapshots and a cancel func. Slow
// subscribers miss intermediate snapshots rather than blocking the batch.
func (s *SweepService) Subscribe() (<-chan domain.BatchStatus, func()) {
	ch := make(chan domain.BatchStatus, subscriberBuffer)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// OnUpdate implements Observer.
func (s *SweepService) OnUpdate(status domain.BatchStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = status
	for ch := range s.subscribers {
		select {
		case ch <- status.Clone():
		default:
			// Drop the oldest snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status.Clone():
			default:
			}
		}
	}
}

func (s *SweepService) run(ctx context.Context, req domain.SweepRequest, observers []Observer) (domain.BatchStatus, error) {
	session, _ := s.wallet.Session()
	return s.orchestrator.Sweep(ctx, session, req, append([]Observer{s}, observers...)...)
}

func (s *SweepService) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return apperror.New(apperror.CodeSweepInProgress)
	}
	s.running = true
	return nil
}

func (s *SweepService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
