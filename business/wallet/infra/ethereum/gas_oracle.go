package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/wallet/app"
	"github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/cache"
	"github.com/fd1az/token-sweeper/internal/circuitbreaker"
	"github.com/fd1az/token-sweeper/internal/logger"
)

const (
	keyGasPrice = "gas_price"
	keyFeeCaps  = "fee_caps"
)

// GasOracleConfig bounds what the oracle will quote.
type GasOracleConfig struct {
	// CacheTTL is how long a price or fee quote is reused. Base mines a
	// block every 2s.
	CacheTTL time.Duration
	// MaxGasPrice clamps the legacy price and the EIP-1559 fee cap. Nil
	// disables the clamp.
	MaxGasPrice *big.Int
	// GasMarginPercent is added on top of eth_estimateGas.
	GasMarginPercent int
}

// DefaultGasOracleConfig is tuned for Base: one block of caching, 50 gwei
// ceiling and a 10% gas margin.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:         2 * time.Second,
		MaxGasPrice:      big.NewInt(50_000_000_000),
		GasMarginPercent: 10,
	}
}

// GasOracle prices and sizes transactions against the connected node.
// Quotes are cached per block and reads go through a circuit breaker.
type GasOracle struct {
	cfg    GasOracleConfig
	log    logger.LoggerInterface
	client Client

	quotes *cache.Cache[string, any]
	cb     *circuitbreaker.CircuitBreaker[*big.Int]

	tracer   trace.Tracer
	requests metric.Int64Counter
	gwei     metric.Float64Gauge
}

var _ app.GasOracle = (*GasOracle)(nil)

// NewGasOracle builds an oracle over client.
func NewGasOracle(client Client, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	meter := otel.Meter(meterName)
	requests, err := meter.Int64Counter("gas_oracle_requests_total",
		metric.WithDescription("Gas oracle lookups by kind and outcome"))
	if err != nil {
		return nil, fmt.Errorf("gas oracle counter: %w", err)
	}
	gwei, err := meter.Float64Gauge("gas_price_gwei",
		metric.WithDescription("Last quoted gas price"),
		metric.WithUnit("gwei"))
	if err != nil {
		return nil, fmt.Errorf("gas oracle gauge: %w", err)
	}

	return &GasOracle{
		cfg:      cfg,
		log:      log,
		client:   client,
		quotes:   cache.New[string, any](time.Minute),
		cb:       circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:   otel.Tracer(tracerName),
		requests: requests,
		gwei:     gwei,
	}, nil
}

// GetGasPrice returns the node's legacy gas price, clamped to MaxGasPrice.
func (g *GasOracle) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.price")
	defer span.End()

	if v, ok := g.quotes.Get(ctx, keyGasPrice); ok {
		g.count(ctx, "price", "hit")
		return v.(*domain.GasPrice), nil
	}

	wei, err := g.cb.Execute(func() (*big.Int, error) { return g.client.SuggestGasPrice(ctx) })
	if err != nil {
		g.count(ctx, "price", "error")
		return nil, g.fail(span, apperror.CodeEthereumRPCError, "eth_gasPrice", err)
	}
	g.count(ctx, "price", "miss")

	price := domain.NewGasPrice(g.clamp(ctx, span, wei))
	g.quotes.Set(ctx, keyGasPrice, price, g.cfg.CacheTTL)
	g.gwei.Record(ctx, price.Gwei)

	span.SetAttributes(attribute.Float64("gwei", price.Gwei))
	return price, nil
}

// GetFeeCaps returns EIP-1559 caps derived from the latest base fee. A chain
// without a base fee gets the legacy price for both caps.
func (g *GasOracle) GetFeeCaps(ctx context.Context) (domain.FeeCaps, error) {
	ctx, span := g.tracer.Start(ctx, "gas.fee_caps")
	defer span.End()

	if v, ok := g.quotes.Get(ctx, keyFeeCaps); ok {
		g.count(ctx, "fee_caps", "hit")
		return v.(domain.FeeCaps), nil
	}

	header, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		g.count(ctx, "fee_caps", "error")
		return domain.FeeCaps{}, g.fail(span, apperror.CodeEthereumRPCError, "latest header", err)
	}

	var caps domain.FeeCaps
	if header.BaseFee == nil {
		price, err := g.GetGasPrice(ctx)
		if err != nil {
			return domain.FeeCaps{}, err
		}
		caps = domain.FeeCaps{TipCap: price.Wei, FeeCap: price.Wei}
	} else {
		tip, err := g.cb.Execute(func() (*big.Int, error) { return g.client.SuggestGasTipCap(ctx) })
		if err != nil {
			g.count(ctx, "fee_caps", "error")
			return domain.FeeCaps{}, g.fail(span, apperror.CodeEthereumRPCError, "eth_maxPriorityFeePerGas", err)
		}
		caps = domain.NewFeeCaps(header.BaseFee, tip)
		caps.FeeCap = g.clamp(ctx, span, caps.FeeCap)
		if caps.TipCap.Cmp(caps.FeeCap) > 0 {
			caps.TipCap = new(big.Int).Set(caps.FeeCap)
		}
		span.SetAttributes(attribute.String("base_fee", header.BaseFee.String()))
	}
	g.count(ctx, "fee_caps", "miss")
	g.quotes.Set(ctx, keyFeeCaps, caps, g.cfg.CacheTTL)

	span.SetAttributes(
		attribute.String("fee_cap", caps.FeeCap.String()),
		attribute.String("tip_cap", caps.TipCap.String()),
	)
	return caps, nil
}

// EstimateGas returns eth_estimateGas plus GasMarginPercent. A revert is
// reported as CodeGasEstimationFailed carrying the node's reason.
func (g *GasOracle) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	to := ""
	if msg.To != nil {
		to = msg.To.Hex()
	}
	ctx, span := g.tracer.Start(ctx, "gas.estimate", trace.WithAttributes(
		attribute.String("to", to),
		attribute.Int("data_len", len(msg.Data)),
	))
	defer span.End()

	gas, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		g.count(ctx, "estimate", "error")
		return 0, g.fail(span, apperror.CodeGasEstimationFailed, to, err)
	}
	g.count(ctx, "estimate", "ok")

	gas = domain.WithMargin(gas, g.cfg.GasMarginPercent)
	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	return gas, nil
}

// Close stops the cache janitor.
func (g *GasOracle) Close() error {
	g.quotes.Close()
	return nil
}

func (g *GasOracle) clamp(ctx context.Context, span trace.Span, wei *big.Int) *big.Int {
	if g.cfg.MaxGasPrice == nil || wei.Cmp(g.cfg.MaxGasPrice) <= 0 {
		return wei
	}
	span.AddEvent("gas_price_clamped", trace.WithAttributes(attribute.String("wei", wei.String())))
	g.log.Warn(ctx, "gas price above ceiling, clamping", "wei", wei.String(), "max", g.cfg.MaxGasPrice.String())
	return new(big.Int).Set(g.cfg.MaxGasPrice)
}

func (g *GasOracle) count(ctx context.Context, kind, outcome string) {
	g.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (g *GasOracle) fail(span trace.Span, code apperror.Code, subject string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	return apperror.New(code, apperror.WithCause(err), apperror.WithContext(subject))
}
