// Package domain contains the core domain types for the sweep context.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TokenStatus is the lifecycle state of one token within a batch.
type TokenStatus string

const (
	StatusConfirming TokenStatus = "confirming"
	StatusSuccess    TokenStatus = "success"
	StatusSkipped    TokenStatus = "skipped"
	StatusFailed     TokenStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s TokenStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusSkipped || s == StatusFailed
}

// BatchState is the batch-level status. Success means processing finished,
// not that every token swapped.
type BatchState string

const (
	BatchIdle       BatchState = "idle"
	BatchConfirming BatchState = "confirming"
	BatchSuccess    BatchState = "success"
	BatchError      BatchState = "error"
)

// Reasons attached to skipped and failed tokens.
const (
	ReasonNativeToken         = "native token"
	ReasonNoLiquidity         = "no liquidity"
	ReasonAmountTooSmall      = "amount too small"
	ReasonLowLiquidity        = "low liquidity or token not supported"
	ReasonTxReverted          = "transaction reverted"
	ReasonArithmeticUnderflow = "arithmetic underflow"
)

// ProcessedToken is the outcome record for one requested token.
type ProcessedToken struct {
	Address        common.Address `json:"address"`
	Symbol         string         `json:"symbol,omitempty"`
	Amount         string         `json:"amount"`
	Status         TokenStatus    `json:"status"`
	Reason         string         `json:"reason,omitempty"`
	TxHash         *common.Hash   `json:"txHash,omitempty"`
	ApprovalTxHash *common.Hash   `json:"approvalTxHash,omitempty"`
}

// Settle moves a confirming record to its terminal state. A record settles
// exactly once.
func (p *ProcessedToken) Settle(status TokenStatus, reason string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("sweep: %q is not a terminal status", status)
	}
	if p.Status.IsTerminal() {
		return fmt.Errorf("sweep: token %s already settled as %s", p.Address.Hex(), p.Status)
	}
	p.Status = status
	p.Reason = reason
	return nil
}

// Summary counts tokens per status.
type Summary struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Confirming int `json:"confirming"`
}

// BatchStatus is the live and final result of one sweep call.
type BatchStatus struct {
	ID              uuid.UUID        `json:"id"`
	Status          BatchState       `json:"status"`
	Target          common.Address   `json:"target"`
	Mode            Mode             `json:"mode"`
	ProcessedTokens []ProcessedToken `json:"processedTokens"`
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      *time.Time       `json:"finishedAt,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// IdleBatch is the status before any sweep has started.
func IdleBatch() BatchStatus {
	return BatchStatus{Status: BatchIdle, ProcessedTokens: []ProcessedToken{}}
}

// NewBatch starts a confirming batch.
func NewBatch(target common.Address, mode Mode, now time.Time) *BatchStatus {
	return &BatchStatus{
		ID:              uuid.New(),
		Status:          BatchConfirming,
		Target:          target,
		Mode:            mode,
		ProcessedTokens: []ProcessedToken{},
		StartedAt:       now,
	}
}

// Finish marks the batch as fully processed.
func (b *BatchStatus) Finish(now time.Time) {
	b.Status = BatchSuccess
	b.FinishedAt = &now
}

// Fail marks the batch as aborted before any token was processed.
func (b *BatchStatus) Fail(err error, now time.Time) {
	b.Status = BatchError
	b.Error = err.Error()
	b.FinishedAt = &now
}

// Done reports whether the batch reached success or error.
func (b *BatchStatus) Done() bool {
	return b.Status == BatchSuccess || b.Status == BatchError
}

// Summary counts the processed tokens per status.
func (b *BatchStatus) Summary() Summary {
	s := Summary{Total: len(b.ProcessedTokens)}
	for _, t := range b.ProcessedTokens {
		switch t.Status {
		case StatusSuccess:
			s.Success++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusConfirming:
			s.Confirming++
		}
	}
	return s
}

// Clone returns a deep copy safe to hand to observers.
func (b *BatchStatus) Clone() BatchStatus {
	out := *b
	out.ProcessedTokens = make([]ProcessedToken, len(b.ProcessedTokens))
	for i, t := range b.ProcessedTokens {
		if t.TxHash != nil {
			h := *t.TxHash
			t.TxHash = &h
		}
		if t.ApprovalTxHash != nil {
			h := *t.ApprovalTxHash
			t.ApprovalTxHash = &h
		}
		out.ProcessedTokens[i] = t
	}
	if b.FinishedAt != nil {
		f := *b.FinishedAt
		out.FinishedAt = &f
	}
	return out
}
