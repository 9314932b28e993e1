// Package scheduler runs unattended sweeps of the holdings snapshot on a
// cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// Sweeper sweeps every eligible holding into target.
type Sweeper interface {
	SweepHoldings(ctx context.Context, target common.Address) (domain.BatchStatus, error)
}

// Config holds the schedule.
type Config struct {
	// Cron is a standard five-field expression or a descriptor such as "@every 1h".
	Cron     string
	Timezone string
	Target   common.Address
}

// Scheduler triggers SweepHoldings on every tick. A tick that fires while
// the previous sweep is still running is skipped.
type Scheduler struct {
	cfg     Config
	sweeper Sweeper
	logger  logger.LoggerInterface
	cron    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the schedule and creates a stopped Scheduler. An unknown
// timezone falls back to UTC.
func New(cfg Config, sweeper Sweeper, log logger.LoggerInterface) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("scheduler.cron %q", cfg.Cron)))
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn(context.Background(), "unknown scheduler timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		} else {
			loc = l
		}
	}

	cl := cronLogger{log: log}
	return &Scheduler{
		cfg:     cfg,
		sweeper: sweeper,
		logger:  log,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// Start registers the job and starts the cron loop. Sweeps run on a child
// of ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("unable to schedule sweep: %w", err)
	}
	s.cron.Start()

	s.logger.Info(ctx, "sweep scheduler started",
		"cron", s.cfg.Cron,
		"target", s.cfg.Target.Hex(),
	)
	return nil
}

// Stop stops the cron loop, cancels a running sweep and waits for it.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
}

// Next returns the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs one scheduled sweep. Errors are logged, not returned:
// a failed tick must not stop the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	status, err := s.sweeper.SweepHoldings(ctx, s.cfg.Target)

	switch {
	case apperror.HasCode(err, apperror.CodeSweepInProgress):
		s.logger.Info(ctx, "scheduled sweep skipped, batch in progress")
	case err != nil:
		s.logger.Warn(ctx, "scheduled sweep failed", "error", err)
	default:
		summary := status.Summary()
		s.logger.Info(ctx, "scheduled sweep complete",
			"batch_id", status.ID.String(),
			"tokens", summary.Total,
			"swapped", summary.Success,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log logger.LoggerInterface
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(context.Background(), "cron: "+msg, append(keysAndValues, "error", err)...)
}
