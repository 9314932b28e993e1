// Package domain contains the core domain types for the wallet context.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ContractCall describes a single ABI method invocation.
type ContractCall struct {
	Address common.Address
	ABI     *abi.ABI
	Method  string
	Args    []any
}

// Pack ABI-encodes the call.
func (c ContractCall) Pack() ([]byte, error) {
	return c.ABI.Pack(c.Method, c.Args...)
}

// TxRequest is a transaction to sign and broadcast. Zero Gas means estimate;
// a nil GasPrice selects EIP-1559 fees.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// ReceiptStatus is the execution outcome of a mined transaction.
type ReceiptStatus string

const (
	ReceiptSuccess  ReceiptStatus = "success"
	ReceiptReverted ReceiptStatus = "reverted"
)

// Receipt is the part of a transaction receipt callers act on.
type Receipt struct {
	TxHash      common.Hash
	Status      ReceiptStatus
	LogCount    int
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptSuccess
}

// TypedData is an EIP-712 payload. Types may omit EIP712Domain; signers
// derive it from the populated Domain fields.
type TypedData struct {
	Domain      apitypes.TypedDataDomain
	Types       apitypes.Types
	PrimaryType string
	Message     apitypes.TypedDataMessage
}
