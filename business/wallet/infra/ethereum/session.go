package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-sweeper/business/wallet/app"
	"github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// SessionConfig holds signing and confirmation settings.
type SessionConfig struct {
	ChainID             *big.Int
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

// LocalSession signs with a private key held in process memory.
type LocalSession struct {
	config  SessionConfig
	client  Client
	oracle  app.GasOracle
	logger  logger.LoggerInterface
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
	tracer  trace.Tracer

	// sendMu serializes nonce allocation and broadcast.
	sendMu sync.Mutex
}

var _ app.Session = (*LocalSession)(nil)

// NewLocalSession parses a hex private key (with or without 0x) and builds a session.
func NewLocalSession(client Client, oracle app.GasOracle, privateKeyHex string, cfg SessionConfig, log logger.LoggerInterface) (*LocalSession, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidPrivateKey, apperror.WithCause(err))
	}

	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 2 * time.Second
	}

	return &LocalSession{
		config:  cfg,
		client:  client,
		oracle:  oracle,
		logger:  log,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Address returns the account the session signs for.
func (s *LocalSession) Address() common.Address {
	return s.address
}

// ReadContract performs an eth_call at the latest block and unpacks the outputs.
func (s *LocalSession) ReadContract(ctx context.Context, call domain.ContractCall) ([]any, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.read_contract",
		trace.WithAttributes(
			attribute.String("to", call.Address.Hex()),
			attribute.String("method", call.Method),
		),
	)
	defer span.End()

	data, err := call.Pack()
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("pack "+call.Method))
	}

	to := call.Address
	out, err := s.client.CallContract(ctx, ethereum.CallMsg{From: s.address, To: &to, Data: data}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(call.Method+" on "+call.Address.Hex()))
	}

	values, err := call.ABI.Unpack(call.Method, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unpack failed")
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("unpack "+call.Method))
	}

	return values, nil
}

// WriteContract signs and broadcasts a contract method call.
func (s *LocalSession) WriteContract(ctx context.Context, call domain.ContractCall) (common.Hash, error) {
	data, err := call.Pack()
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("pack "+call.Method))
	}
	return s.SendTransaction(ctx, domain.TxRequest{To: call.Address, Data: data})
}

// SendTransaction estimates gas when unset, prices the transaction (legacy
// when GasPrice is given, EIP-1559 otherwise), signs and broadcasts it.
func (s *LocalSession) SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.send_transaction",
		trace.WithAttributes(
			attribute.String("to", req.To.Hex()),
			attribute.Int("data_len", len(req.Data)),
		),
	)
	defer span.End()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	gas := req.Gas
	if gas == 0 {
		to := req.To
		estimated, err := s.oracle.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "estimate failed")
			return common.Hash{}, err
		}
		gas = estimated
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nonce failed")
		return common.Hash{}, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce"))
	}

	var unsigned *types.Transaction
	if req.GasPrice != nil {
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice,
			Gas:      gas,
			To:       &req.To,
			Value:    value,
			Data:     req.Data,
		})
	} else {
		caps, err := s.oracle.GetFeeCaps(ctx)
		if err != nil {
			span.RecordError(err)
			return common.Hash{}, err
		}
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.config.ChainID,
			Nonce:     nonce,
			GasTipCap: caps.TipCap,
			GasFeeCap: caps.FeeCap,
			Gas:       gas,
			To:        &req.To,
			Value:     value,
			Data:      req.Data,
		})
	}

	signed, err := types.SignTx(unsigned, s.signer, s.key)
	if err != nil {
		span.RecordError(err)
		return common.Hash{}, apperror.New(apperror.CodeSignatureFailed, apperror.WithCause(err))
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
		return common.Hash{}, apperror.New(apperror.CodeTxSubmitFailed,
			apperror.WithCause(err),
			apperror.WithContext(req.To.Hex()))
	}

	span.SetAttributes(
		attribute.String("tx_hash", signed.Hash().Hex()),
		attribute.Int64("nonce", int64(nonce)),
		attribute.Int64("gas", int64(gas)),
	)
	span.SetStatus(codes.Ok, "sent")
	s.logger.Debug(ctx, "transaction sent", "hash", signed.Hash().Hex(), "to", req.To.Hex(), "nonce", nonce, "gas", gas)

	return signed.Hash(), nil
}

// SignTypedData signs an EIP-712 payload with the session key.
func (s *LocalSession) SignTypedData(ctx context.Context, data domain.TypedData) ([]byte, error) {
	_, span := s.tracer.Start(ctx, "wallet.sign_typed_data",
		trace.WithAttributes(attribute.String("primary_type", data.PrimaryType)),
	)
	defer span.End()

	sig, err := signTypedData(s.key, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
		return nil, apperror.New(apperror.CodeSignatureFailed,
			apperror.WithCause(err),
			apperror.WithContext(data.PrimaryType))
	}
	return sig, nil
}

// WaitForReceipt polls for the receipt until it is mined, ctx ends or the
// receipt timeout elapses.
func (s *LocalSession) WaitForReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.wait_receipt",
		trace.WithAttributes(attribute.String("tx_hash", hash.Hex())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			r := toReceipt(receipt)
			span.SetAttributes(
				attribute.String("status", string(r.Status)),
				attribute.Int("logs", r.LogCount),
			)
			return r, nil
		}
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "receipt failed")
			return nil, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithCause(err),
				apperror.WithContext("receipt "+hash.Hex()))
		}

		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "timeout")
			return nil, apperror.New(apperror.CodeTxReceiptTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(hash.Hex()))
		case <-ticker.C:
		}
	}
}

func toReceipt(r *types.Receipt) *domain.Receipt {
	status := domain.ReceiptReverted
	if r.Status == types.ReceiptStatusSuccessful {
		status = domain.ReceiptSuccess
	}

	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}

	return &domain.Receipt{
		TxHash:      r.TxHash,
		Status:      status,
		LogCount:    len(r.Logs),
		BlockNumber: block,
		GasUsed:     r.GasUsed,
	}
}
