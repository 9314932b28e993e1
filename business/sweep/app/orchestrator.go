package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	"github.com/fd1az/token-sweeper/internal/apm"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/logger"
)

const (
	tracerName = "sweep"
	meterName  = "sweep"
)

// OrchestratorConfig holds the per-deployment pipeline settings.
type OrchestratorConfig struct {
	ChainID uint64
	Policy  AmountPolicy
	// NativeSentinel is an extra address treated as the native coin, on top
	// of the zero address and 0xEeee...EeE.
	NativeSentinel common.Address
}

// OrchestratorDeps are the collaborators of the pipeline. Pruner and
// Refresher are optional.
type OrchestratorDeps struct {
	Quotes    QuoteClient
	Tokens    TokenContracts
	Strategy  SubmitStrategy
	Allowance *AllowanceManager
	Denylist  *Denylist
	Pacer     Pacer
	Registry  *asset.Registry
	Pruner    HoldingsPruner
	Refresher Refresher
}

type orchestratorMetrics struct {
	batches       metric.Int64Counter
	tokens        metric.Int64Counter
	tokenDuration metric.Float64Histogram
	denylisted    metric.Int64Counter
}

// Orchestrator runs the per-token sweep pipeline strictly in order, one
// token at a time.
type Orchestrator struct {
	deps    OrchestratorDeps
	cfg     OrchestratorConfig
	logger  logger.LoggerInterface
	tracer  apm.Tracer
	metrics *orchestratorMetrics
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig, log logger.LoggerInterface) (*Orchestrator, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil {
		deps.Registry = asset.DefaultRegistry()
	}

	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: log,
		tracer: apm.NewTracer(tracerName),
		now:    time.Now,
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.batches, err = meter.Int64Counter(
		"sweep_batches_total",
		metric.WithDescription("Sweep batches by final state"),
	)
	if err != nil {
		return err
	}

	o.metrics.tokens, err = meter.Int64Counter(
		"sweep_tokens_total",
		metric.WithDescription("Processed tokens by outcome"),
	)
	if err != nil {
		return err
	}

	o.metrics.tokenDuration, err = meter.Float64Histogram(
		"sweep_token_duration_ms",
		metric.WithDescription("Time spent on one token, pacing excluded"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.metrics.denylisted, err = meter.Int64Counter(
		"sweep_denylisted_total",
		metric.WithDescription("Tokens added to the denylist"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Mode returns the submission mode of the configured strategy.
func (o *Orchestrator) Mode() domain.Mode {
	return o.deps.Strategy.Mode()
}

// Denylist returns the denylist the pipeline consults.
func (o *Orchestrator) Denylist() *Denylist {
	return o.deps.Denylist
}

// batchRun serializes updates to one BatchStatus and pushes snapshots.
type batchRun struct {
	status    *domain.BatchStatus
	observers []Observer
}

func (r *batchRun) emit() {
	if len(r.observers) == 0 {
		return
	}
	snap := r.status.Clone()
	for _, obs := range r.observers {
		obs.OnUpdate(snap)
	}
}

// Sweep processes every requested token and returns the final status. Only
// setup failures (no session, malformed request) return an error, together
// with a batch in the error state; per-token failures are recorded in
// ProcessedTokens.
func (o *Orchestrator) Sweep(
	ctx context.Context,
	session walletApp.Session,
	req domain.SweepRequest,
	observers ...Observer,
) (domain.BatchStatus, error) {
	run := &batchRun{
		status:    domain.NewBatch(req.Target, o.Mode(), o.now()),
		observers: observers,
	}

	ctx, span := o.tracer.StartSpanFromContext(ctx, "sweep.batch",
		trace.WithAttributes(
			attribute.String("batch_id", run.status.ID.String()),
			attribute.String("target", req.Target.Hex()),
			attribute.String("mode", string(o.Mode())),
			attribute.Int("tokens", len(req.Tokens)),
		),
	)
	defer span.End()

	if err := o.preflight(session, req); err != nil {
		run.status.Fail(err, o.now())
		run.emit()
		span.NoticeError(err)
		o.metrics.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.BatchError))))
		o.logger.Error(ctx, "sweep aborted", "batch_id", run.status.ID, "error", err)
		return run.status.Clone(), err
	}

	o.logger.Info(ctx, "sweep started",
		"batch_id", run.status.ID,
		"tokens", len(req.Tokens),
		"target", req.Target.Hex(),
		"mode", o.Mode())
	run.emit()

	for i := range req.Tokens {
		o.processToken(ctx, session, req, i, run)

		if err := o.deps.Pacer.Wait(ctx); err != nil {
			o.logger.Warn(ctx, "pacing interrupted", "error", err)
		}
	}

	run.status.Finish(o.now())
	run.emit()

	summary := run.status.Summary()
	span.SetAttributes(
		attribute.Int("success", summary.Success),
		attribute.Int("skipped", summary.Skipped),
		attribute.Int("failed", summary.Failed),
	)
	span.SetStatus(codes.Ok, "batch processed")
	o.metrics.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(domain.BatchSuccess))))
	o.logger.Info(ctx, "sweep finished",
		"batch_id", run.status.ID,
		"success", summary.Success,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	if o.deps.Refresher != nil {
		if err := o.deps.Refresher.Refresh(ctx); err != nil {
			o.logger.Warn(ctx, "post-sweep refresh failed", "error", err)
		}
	}

	return run.status.Clone(), nil
}

func (o *Orchestrator) preflight(session walletApp.Session, req domain.SweepRequest) error {
	if session == nil {
		return apperror.New(apperror.CodeNoWallet)
	}
	return req.Validate()
}

// processToken appends exactly one record for token i and settles it.
func (o *Orchestrator) processToken(
	ctx context.Context,
	session walletApp.Session,
	req domain.SweepRequest,
	i int,
	run *batchRun,
) {
	token := req.Tokens[i]
	start := o.now()

	ctx, span := o.tracer.StartSpanFromContext(ctx, "sweep.token",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("amount", req.Amounts[i]),
			attribute.Int("index", i),
		),
	)
	defer span.End()

	rec := domain.ProcessedToken{
		Address: token,
		Symbol:  o.knownSymbol(token, req.SymbolAt(i)),
		Amount:  req.Amounts[i],
	}

	skip := func(reason string) {
		rec.Status = domain.StatusSkipped
		rec.Reason = reason
		run.status.ProcessedTokens = append(run.status.ProcessedTokens, rec)
		run.emit()
		o.record(ctx, span, rec, start)
	}

	if asset.IsNativeSentinel(token) || (o.cfg.NativeSentinel != (common.Address{}) && token == o.cfg.NativeSentinel) {
		skip(domain.ReasonNativeToken)
		return
	}
	if o.deps.Denylist.Contains(token) {
		skip(domain.ReasonNoLiquidity)
		return
	}

	if ctx.Err() != nil {
		o.settleNew(ctx, span, run, rec, Outcome{Status: domain.StatusFailed, Reason: ctx.Err().Error()}, start)
		return
	}

	tokenAsset, err := o.resolveAsset(ctx, token, rec.Symbol)
	if err != nil {
		o.settleNew(ctx, span, run, rec, Classify(Signal{Stage: StagePrepare, Err: err}), start)
		return
	}
	if rec.Symbol == "" {
		rec.Symbol = tokenAsset.Symbol()
	}

	amount, err := o.cfg.Policy.BaseUnits(tokenAsset, req.Amounts[i])
	if err != nil {
		o.settleNew(ctx, span, run, rec, Classify(Signal{Stage: StagePrepare, Err: err}), start)
		return
	}
	if amount.IsZero() {
		skip(domain.ReasonAmountTooSmall)
		return
	}
	span.SetAttributes(attribute.String("sell_amount", amount.Raw().String()))

	// Observers see the token before the quote is awaited.
	rec.Status = domain.StatusConfirming
	run.status.ProcessedTokens = append(run.status.ProcessedTokens, rec)
	idx := len(run.status.ProcessedTokens) - 1
	run.emit()

	outcome := o.swap(ctx, session, req.Target, amount, &run.status.ProcessedTokens[idx])
	o.settle(ctx, span, run, idx, outcome, start)
}

// swap runs quote, approval and submission for one token and classifies
// the terminal signal. rec receives the approval and swap hashes.
func (o *Orchestrator) swap(
	ctx context.Context,
	session walletApp.Session,
	target common.Address,
	amount asset.Amount,
	rec *domain.ProcessedToken,
) Outcome {
	quote, err := o.deps.Quotes.Quote(ctx, domain.QuoteRequest{
		SellToken:  rec.Address,
		BuyToken:   target,
		SellAmount: amount.Raw(),
		Taker:      session.Address(),
	})
	if err != nil {
		return Classify(Signal{Stage: StageQuote, Err: err})
	}

	if quote.AllowanceTarget != nil {
		approval, err := o.deps.Allowance.Ensure(ctx, session, rec.Address, *quote.AllowanceTarget, amount.Raw())
		rec.ApprovalTxHash = approval
		if err != nil {
			return Classify(Signal{Stage: StageApproval, Err: err})
		}
	}

	tx, err := o.deps.Strategy.Prepare(ctx, session, quote)
	if err != nil {
		return Classify(Signal{Stage: StageSwap, Err: err})
	}

	hash, err := session.SendTransaction(ctx, tx)
	if err != nil {
		return Classify(Signal{Stage: StageSwap, Err: err})
	}
	rec.TxHash = &hash

	receipt, err := session.WaitForReceipt(ctx, hash)
	if err != nil {
		return Classify(Signal{Stage: StageSwap, Err: err})
	}
	return Classify(Signal{Stage: StageSwap, Receipt: receipt})
}

// settleNew appends rec as confirming, then settles it, so every record
// passes through confirming once it touched the network.
func (o *Orchestrator) settleNew(ctx context.Context, span apm.Span, run *batchRun, rec domain.ProcessedToken, out Outcome, start time.Time) {
	rec.Status = domain.StatusConfirming
	run.status.ProcessedTokens = append(run.status.ProcessedTokens, rec)
	run.emit()
	o.settle(ctx, span, run, len(run.status.ProcessedTokens)-1, out, start)
}

func (o *Orchestrator) settle(ctx context.Context, span apm.Span, run *batchRun, idx int, out Outcome, start time.Time) {
	rec := &run.status.ProcessedTokens[idx]
	if err := rec.Settle(out.Status, out.Reason); err != nil {
		o.logger.Error(ctx, "invalid token transition", "error", err)
	}

	if out.Denylist {
		added, err := o.deps.Denylist.Add(ctx, rec.Address)
		if err != nil {
			o.logger.Warn(ctx, "denylist persist failed", "token", rec.Address.Hex(), "error", err)
		}
		// Membership is in memory even when the store write failed.
		if added {
			o.metrics.denylisted.Add(ctx, 1)
		}
	}
	if out.Prune && o.deps.Pruner != nil {
		o.deps.Pruner.Prune(ctx, rec.Address)
	}

	run.emit()
	o.record(ctx, span, *rec, start)
}

func (o *Orchestrator) record(ctx context.Context, span apm.Span, rec domain.ProcessedToken, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("status", string(rec.Status)))
	o.metrics.tokens.Add(ctx, 1, attrs)
	o.metrics.tokenDuration.Record(ctx, float64(o.now().Sub(start).Milliseconds()), attrs)

	span.SetAttributes(
		attribute.String("status", string(rec.Status)),
		attribute.String("reason", rec.Reason),
	)
	if rec.Status == domain.StatusFailed {
		span.SetStatus(codes.Error, rec.Reason)
	}

	o.logger.Info(ctx, "token processed",
		"token", rec.Address.Hex(),
		"symbol", rec.Symbol,
		"amount", rec.Amount,
		"status", rec.Status,
		"reason", rec.Reason)
}

// knownSymbol returns a symbol without touching the network.
func (o *Orchestrator) knownSymbol(token common.Address, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if a, ok := o.deps.Registry.GetToken(o.cfg.ChainID, token); ok {
		return a.Symbol()
	}
	return ""
}

// resolveAsset returns the token's metadata, reading decimals on-chain for
// unknown tokens and remembering them in the registry.
func (o *Orchestrator) resolveAsset(ctx context.Context, token common.Address, symbol string) (*asset.Asset, error) {
	if a, ok := o.deps.Registry.GetToken(o.cfg.ChainID, token); ok {
		return a, nil
	}

	decimals, err := o.deps.Tokens.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}

	if symbol == "" {
		if s, err := o.deps.Tokens.Symbol(ctx, token); err == nil {
			symbol = s
		} else {
			o.logger.Debug(ctx, "symbol read failed", "token", token.Hex(), "error", err)
		}
	}
	if symbol == "" {
		symbol = token.Hex()[:8]
	}

	a := asset.NewToken(o.cfg.ChainID, token, symbol, decimals)
	o.deps.Registry.Upsert(a)
	return a, nil
}
