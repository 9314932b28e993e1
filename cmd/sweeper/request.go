package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
)

// parseRequest parses the comma-separated -tokens, -amounts and -symbols
// flags. Entries equal to target are dropped.
func parseRequest(tokens, amounts, symbols string, target common.Address) (domain.SweepRequest, error) {
	tokenList := splitList(tokens)
	amountList := splitList(amounts)
	symbolList := splitList(symbols)

	if len(tokenList) != len(amountList) {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d amounts", len(tokenList), len(amountList))))
	}
	if len(symbolList) != 0 && len(symbolList) != len(tokenList) {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d symbols", len(tokenList), len(symbolList))))
	}

	req := domain.SweepRequest{Target: target}
	for i, raw := range tokenList {
		if !common.IsHexAddress(raw) {
			return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
				apperror.WithContext(fmt.Sprintf("token %d %q is not an address", i, raw)))
		}
		token := common.HexToAddress(raw)
		if token == target {
			continue
		}
		req.Tokens = append(req.Tokens, token)
		req.Amounts = append(req.Amounts, amountList[i])
		if len(symbolList) != 0 {
			req.Symbols = append(req.Symbols, symbolList[i])
		}
	}
	return req, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
