// Package erc20 reads and approves ERC-20 tokens over JSON-RPC.
package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/sweep/app"
	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/cache"
	"github.com/fd1az/token-sweeper/internal/circuitbreaker"
	"github.com/fd1az/token-sweeper/internal/logger"
)

const (
	tracerName = "erc20"
	meterName  = "erc20"
)

// Ensure Client implements TokenContracts.
var _ app.TokenContracts = (*Client)(nil)

type clientMetrics struct {
	callsTotal  metric.Int64Counter
	callLatency metric.Float64Histogram
	callErrors  metric.Int64Counter
}

// Client performs ERC-20 reads through a circuit breaker. Decimals and
// symbols never change and are cached for the life of the process.
type Client struct {
	caller    ethereum.ContractCaller
	abi       abi.ABI
	symbolABI abi.ABI
	cb        *circuitbreaker.CircuitBreaker[[]byte]

	decimals *cache.Cache[common.Address, uint8]
	symbols  *cache.Cache[common.Address, string]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates an ERC-20 client.
func NewClient(caller ethereum.ContractCaller, log logger.LoggerInterface) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	legacy, err := abi.JSON(strings.NewReader(bytes32SymbolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bytes32 symbol ABI: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("erc20-rpc")
	cbCfg.IsSuccessful = isBreakerSuccess
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	c := &Client{
		caller:    caller,
		abi:       parsed,
		symbolABI: legacy,
		cb:        circuitbreaker.New[[]byte](cbCfg),
		decimals:  cache.New[common.Address, uint8](0),
		symbols:   cache.New[common.Address, string](0),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
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

	c.metrics.callsTotal, err = meter.Int64Counter(
		"erc20_calls_total",
		metric.WithDescription("Total ERC-20 read calls"),
	)
	if err != nil {
		return err
	}

	c.metrics.callLatency, err = meter.Float64Histogram(
		"erc20_call_latency_ms",
		metric.WithDescription("ERC-20 read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.callErrors, err = meter.Int64Counter(
		"erc20_call_errors_total",
		metric.WithDescription("Total failed ERC-20 reads"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Decimals returns the token's decimals.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if d, ok := c.decimals.Get(ctx, token); ok {
		return d, nil
	}

	out, err := c.read(ctx, &c.abi, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, c.decodeError(token, "decimals", out[0])
	}

	c.decimals.Set(ctx, token, d, cache.NoExpiration)
	return d, nil
}

// Symbol returns the token's symbol, falling back to the bytes32 form.
func (c *Client) Symbol(ctx context.Context, token common.Address) (string, error) {
	if s, ok := c.symbols.Get(ctx, token); ok {
		return s, nil
	}

	var symbol string
	out, err := c.read(ctx, &c.abi, token, "symbol")
	if err == nil {
		s, ok := out[0].(string)
		if !ok {
			return "", c.decodeError(token, "symbol", out[0])
		}
		symbol = s
	} else {
		legacy, lerr := c.read(ctx, &c.symbolABI, token, "symbol")
		if lerr != nil {
			return "", err
		}
		raw, ok := legacy[0].([32]byte)
		if !ok {
			return "", c.decodeError(token, "symbol", legacy[0])
		}
		symbol = string(bytes.TrimRight(raw[:], "\x00"))
	}

	c.symbols.Set(ctx, token, symbol, cache.NoExpiration)
	return symbol, nil
}

// Allowance returns allowance(owner, spender).
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "allowance", owner, spender)
}

// BalanceOf returns balanceOf(owner).
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "balanceOf", owner)
}

// TotalSupply returns totalSupply().
func (c *Client) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return c.readUint(ctx, token, "totalSupply")
}

// Approve sends approve(spender, amount) from the session account.
func (c *Client) Approve(ctx context.Context, session walletApp.Session, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	ctx, span := c.tracer.Start(ctx, "erc20.approve",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("spender", spender.Hex()),
		),
	)
	defer span.End()

	hash, err := session.WriteContract(ctx, walletDomain.ContractCall{
		Address: token,
		ABI:     &c.abi,
		Method:  "approve",
		Args:    []any{spender, amount},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve failed")
		return common.Hash{}, err
	}

	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))
	c.logger.Info(ctx, "approval sent", "token", token.Hex(), "spender", spender.Hex(), "tx", hash.Hex())
	return hash, nil
}

func (c *Client) readUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.read(ctx, &c.abi, token, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, c.decodeError(token, method, out[0])
	}
	return v, nil
}

func (c *Client) read(ctx context.Context, contract *abi.ABI, token common.Address, method string, args ...any) ([]any, error) {
	ctx, span := c.tracer.Start(ctx, "erc20."+method,
		trace.WithAttributes(attribute.String("token", token.Hex())),
	)
	defer span.End()

	start := time.Now()
	c.metrics.callsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("pack "+method))
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	})
	c.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.metrics.callErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeTokenReadFailed,
			apperror.WithCause(err),
			apperror.WithContext(method+" on "+token.Hex()))
	}

	out, err := contract.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		c.metrics.callErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, "unpack failed")
		if err == nil {
			err = fmt.Errorf("empty %s result", method)
		}
		return nil, apperror.New(apperror.CodeTokenReadFailed,
			apperror.WithCause(err),
			apperror.WithContext(method+" on "+token.Hex()))
	}

	span.SetStatus(codes.Ok, "ok")
	return out, nil
}

func (c *Client) decodeError(token common.Address, method string, v any) error {
	return apperror.New(apperror.CodeTokenReadFailed,
		apperror.WithMessage(fmt.Sprintf("unexpected %s result type %T", method, v)),
		apperror.WithContext(token.Hex()))
}

// HealthCheck reports the RPC path as unhealthy while the breaker is open.
func (c *Client) HealthCheck(_ context.Context) (bool, string) {
	state := c.cb.State()
	return state != circuitbreaker.StateOpen, "circuit " + state.String()
}

// A revert is the token's answer, not an RPC outage.
func isBreakerSuccess(err error) bool {
	return err == nil || strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
