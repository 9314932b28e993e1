// Package zerox implements the QuoteClient port against the 0x Swap API v2.
package zerox

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/sweep/app"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/circuitbreaker"
	"github.com/fd1az/token-sweeper/internal/httpclient"
	"github.com/fd1az/token-sweeper/internal/logger"
	"github.com/fd1az/token-sweeper/internal/ratelimit"
)

const (
	tracerName = "zerox"
	meterName  = "zerox"

	// DefaultBaseURL is the public 0x API.
	DefaultBaseURL = "https://api.0x.org"

	allowanceHolderPath = "/swap/allowance-holder/quote"
	permit2Path         = "/swap/permit2/quote"

	defaultTimeout = 15 * time.Second

	// rateLimitRetries is how often a 429 is retried before it surfaces as
	// a failed quote.
	rateLimitRetries = 2
)

// Ensure Client implements QuoteClient.
var _ app.QuoteClient = (*Client)(nil)

// Config holds the 0x client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	APIVersion  string
	Mode        domain.Mode
	ChainID     uint64
	SlippageBps int
	// FeeRecipient enables integrator fees in the buy token when set with FeeBps.
	FeeRecipient      *common.Address
	FeeBps            int
	RequestsPerMinute int
	Timeout           time.Duration
}

type clientMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	noLiquidity  metric.Int64Counter
	quoteErrors  metric.Int64Counter
}

// Client requests firm quotes. Calls are rate limited and pass through a
// circuit breaker; no-liquidity answers do not count as breaker failures.
type Client struct {
	http    httpclient.Client
	cfg     Config
	path    string
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[*domain.Quote]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a 0x client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	path := allowanceHolderPath
	switch cfg.Mode {
	case domain.ModeDirect:
	case domain.ModePermit:
		path = permit2Path
	default:
		return nil, fmt.Errorf("zerox: unsupported mode %q", cfg.Mode)
	}

	tracer := otel.Tracer(tracerName)

	headers := map[string]string{
		"Accept":     "application/json",
		"0x-version": cfg.APIVersion,
	}
	if cfg.APIKey != "" {
		headers["0x-api-key"] = cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("0x"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTracer(tracer, true),
		httpclient.WithHeaders(headers),
		httpclient.WithRateLimitRetries(rateLimitRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("0x-quote")
	cbCfg.IsSuccessful = isBreakerSuccess
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	c := &Client{
		http:    client,
		cfg:     cfg,
		path:    path,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cb:      circuitbreaker.New[*domain.Quote](cbCfg),
		logger:  log,
		tracer:  tracer,
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.quotesTotal, err = meter.Int64Counter(
		"zerox_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	c.metrics.quoteLatency, err = meter.Float64Histogram(
		"zerox_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.noLiquidity, err = meter.Int64Counter(
		"zerox_no_liquidity_total",
		metric.WithDescription("Quotes answered with no liquidity"),
	)
	if err != nil {
		return err
	}

	c.metrics.quoteErrors, err = meter.Int64Counter(
		"zerox_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Quote implements app.QuoteClient.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "zerox.quote",
		trace.WithAttributes(
			attribute.String("sell_token", req.SellToken.Hex()),
			attribute.String("buy_token", req.BuyToken.Hex()),
			attribute.String("sell_amount", req.SellAmount.String()),
			attribute.String("mode", string(c.cfg.Mode)),
		),
	)
	defer span.End()

	start := time.Now()
	c.metrics.quotesTotal.Add(ctx, 1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}

	quote, err := c.cb.Execute(func() (*domain.Quote, error) {
		return c.fetch(ctx, req)
	})

	c.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		if apperror.HasCode(err, apperror.CodeQuoteNoLiquidity) {
			c.metrics.noLiquidity.Add(ctx, 1)
			span.SetAttributes(attribute.Bool("no_liquidity", true))
		} else {
			c.metrics.quoteErrors.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("buy_amount", quote.BuyAmount.String()))
	span.SetStatus(codes.Ok, "quote received")

	c.logger.Debug(ctx, "0x quote",
		"sell_token", req.SellToken.Hex(),
		"buy_token", req.BuyToken.Hex(),
		"sell_amount", req.SellAmount.String(),
		"buy_amount", quote.BuyAmount.String())

	return quote, nil
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}

// HealthCheck reports the quote service as unhealthy while the breaker is
// open. Its signature matches health.CheckFunc.
func (c *Client) HealthCheck(_ context.Context) (bool, string) {
	state := c.cb.State()
	return state != circuitbreaker.StateOpen, "circuit " + state.String()
}

func (c *Client) fetch(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	var body quoteResponse

	r := c.http.NewRequest(
		httpclient.WithLabels(
			httpclient.Label{Key: "endpoint", Value: "quote"},
			httpclient.Label{Key: "mode", Value: string(c.cfg.Mode)},
		),
		httpclient.WithResponseErrorHandler(zeroxErrorHandler),
	).
		SetQueryParam("chainId", strconv.FormatUint(c.cfg.ChainID, 10)).
		SetQueryParam("sellToken", req.SellToken.Hex()).
		SetQueryParam("buyToken", req.BuyToken.Hex()).
		SetQueryParam("sellAmount", req.SellAmount.String()).
		SetQueryParam("slippageBps", strconv.Itoa(c.cfg.SlippageBps)).
		SetQueryParam("taker", req.Taker.Hex()).
		SetResult(&body)

	if c.cfg.FeeRecipient != nil && c.cfg.FeeBps > 0 {
		r = r.SetQueryParam("swapFeeRecipient", c.cfg.FeeRecipient.Hex()).
			SetQueryParam("swapFeeBps", strconv.Itoa(c.cfg.FeeBps)).
			SetQueryParam("swapFeeToken", req.BuyToken.Hex())
	}

	resp, err := r.Get(ctx, c.path)
	if err != nil {
		var qe *domain.QuoteError
		if errors.As(err, &qe) {
			code := apperror.CodeQuoteFailed
			if qe.StatusCode == http.StatusServiceUnavailable {
				code = apperror.CodeQuoteNoLiquidity
			}
			return nil, apperror.New(code, apperror.WithCause(qe), apperror.WithContext(req.SellToken.Hex()))
		}
		return nil, apperror.New(apperror.CodeQuoteFailed, apperror.WithCause(err), apperror.WithContext(req.SellToken.Hex()))
	}

	if resp.Result() == nil {
		return nil, apperror.New(apperror.CodeQuoteDecode,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	if body.LiquidityAvailable != nil && !*body.LiquidityAvailable {
		return nil, apperror.New(apperror.CodeQuoteNoLiquidity,
			apperror.WithCause(&domain.QuoteError{
				StatusCode: http.StatusServiceUnavailable,
				Body:       `{"message":"No liquidity","liquidityAvailable":false}`,
			}),
			apperror.WithContext(req.SellToken.Hex()))
	}

	return body.toQuote(req, c.cfg.Mode)
}

// zeroxErrorHandler keeps non-2xx bodies verbatim.
func zeroxErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		return &domain.QuoteError{StatusCode: statusCode, Body: string(body)}
	}
	return nil
}

func isBreakerSuccess(err error) bool {
	if err == nil || apperror.HasCode(err, apperror.CodeQuoteNoLiquidity) {
		return true
	}
	var qe *domain.QuoteError
	return errors.As(err, &qe) && qe.StatusCode < http.StatusInternalServerError
}

func parseBig(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(s, 0)
}
