package zerox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

// quoteResponse is the subset of the v2 quote body the sweep uses.
type quoteResponse struct {
	LiquidityAvailable *bool  `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	SellAmount         string `json:"sellAmount"`
	Issues             struct {
		Allowance *struct {
			Actual  string `json:"actual"`
			Spender string `json:"spender"`
		} `json:"allowance"`
	} `json:"issues"`
	Transaction struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
	} `json:"transaction"`
	Permit2 *struct {
		Type   string          `json:"type"`
		Hash   string          `json:"hash"`
		EIP712 json.RawMessage `json:"eip712"`
	} `json:"permit2"`
}

// eip712Payload mirrors apitypes.TypedData but keeps chainId raw: 0x sends
// it as a JSON number.
type eip712Payload struct {
	Types       apitypes.Types `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Domain      struct {
		Name              string          `json:"name"`
		Version           string          `json:"version"`
		ChainID           json.RawMessage `json:"chainId"`
		VerifyingContract string          `json:"verifyingContract"`
		Salt              string          `json:"salt"`
	} `json:"domain"`
	Message json.RawMessage `json:"message"`
}

func (r *quoteResponse) toQuote(req domain.QuoteRequest, mode domain.Mode) (*domain.Quote, error) {
	invalid := func(msg string) error {
		return apperror.New(apperror.CodeInvalidQuote,
			apperror.WithMessage(msg),
			apperror.WithContext(req.SellToken.Hex()))
	}

	if !common.IsHexAddress(r.Transaction.To) {
		return nil, invalid(`quote response missing "to" address`)
	}

	data, err := hexutil.Decode(r.Transaction.Data)
	if err != nil {
		return nil, invalid("quote calldata is not hex: " + err.Error())
	}

	value, ok := parseBig(r.Transaction.Value)
	if !ok {
		return nil, invalid("quote value is not a number")
	}
	buyAmount, ok := parseBig(r.BuyAmount)
	if !ok {
		return nil, invalid("quote buyAmount is not a number")
	}
	gas, ok := parseBig(r.Transaction.Gas)
	if !ok || !gas.IsUint64() {
		return nil, invalid("quote gas is not a number")
	}

	q := &domain.Quote{
		Token:      req.SellToken,
		SellAmount: req.SellAmount,
		BuyAmount:  buyAmount,
		Transaction: domain.QuoteTx{
			To:    common.HexToAddress(r.Transaction.To),
			Data:  data,
			Value: value,
			Gas:   gas.Uint64(),
		},
	}

	if r.Transaction.GasPrice != "" {
		gasPrice, ok := parseBig(r.Transaction.GasPrice)
		if !ok {
			return nil, invalid("quote gasPrice is not a number")
		}
		q.Transaction.GasPrice = gasPrice
	}

	switch {
	case r.Issues.Allowance != nil && common.IsHexAddress(r.Issues.Allowance.Spender):
		spender := common.HexToAddress(r.Issues.Allowance.Spender)
		q.AllowanceTarget = &spender
	case mode == domain.ModeDirect:
		// The AllowanceHolder is the transaction target itself.
		to := q.Transaction.To
		q.AllowanceTarget = &to
	}

	if mode == domain.ModePermit {
		if r.Permit2 == nil || len(r.Permit2.EIP712) == 0 {
			return nil, invalid("quote response missing permit2 payload")
		}
		td, err := decodeTypedData(r.Permit2.EIP712)
		if err != nil {
			return nil, apperror.New(apperror.CodeQuoteDecode, apperror.WithCause(err), apperror.WithContext(req.SellToken.Hex()))
		}
		q.Permit = td
	}

	return q, nil
}

func decodeTypedData(raw json.RawMessage) (*walletDomain.TypedData, error) {
	var p eip712Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode eip712: %w", err)
	}

	td := &walletDomain.TypedData{
		Types:       p.Types,
		PrimaryType: p.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              p.Domain.Name,
			Version:           p.Domain.Version,
			VerifyingContract: p.Domain.VerifyingContract,
			Salt:              p.Domain.Salt,
		},
	}

	if len(p.Domain.ChainID) > 0 && string(p.Domain.ChainID) != "null" {
		s := strings.Trim(string(p.Domain.ChainID), `"`)
		id, ok := math.ParseBig256(s)
		if !ok {
			return nil, fmt.Errorf("decode eip712: invalid chainId %q", s)
		}
		td.Domain.ChainId = (*math.HexOrDecimal256)(id)
	}

	message, err := decodeMessage(p.Message)
	if err != nil {
		return nil, err
	}
	td.Message = message

	return td, nil
}

// decodeMessage keeps numbers as decimal strings so uint256 fields survive
// without float rounding.
func decodeMessage(raw json.RawMessage) (apitypes.TypedDataMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var msg map[string]any
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode eip712 message: %w", err)
	}
	return normalizeNumbers(msg).(map[string]any), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}
