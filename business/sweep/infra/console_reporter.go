// Package infra contains infrastructure adapters for the sweep context.
package infra

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/token-sweeper/business/sweep/app"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/asset"
)

var _ app.Observer = (*ConsoleReporter)(nil)

// ConsoleReporter prints each token transition once, then a batch summary.
type ConsoleReporter struct {
	out      io.Writer
	registry *asset.Registry
	chainID  uint64
	now      func() time.Time

	mu      sync.Mutex
	batch   uuid.UUID
	printed []domain.TokenStatus
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter(registry *asset.Registry, chainID uint64) *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout, registry, chainID)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer, registry *asset.Registry, chainID uint64) *ConsoleReporter {
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return &ConsoleReporter{out: out, registry: registry, chainID: chainID, now: time.Now}
}

// OnUpdate implements app.Observer.
func (r *ConsoleReporter) OnUpdate(status domain.BatchStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if status.ID != r.batch {
		r.batch = status.ID
		r.printed = r.printed[:0]
		fmt.Fprintln(r.out, "")
		fmt.Fprintln(r.out, "================================================================================")
		fmt.Fprintf(r.out, "SWEEP %s\n", status.ID)
		fmt.Fprintf(r.out, "Target:   %s\n", r.targetLabel(status))
		fmt.Fprintf(r.out, "Mode:     %s\n", status.Mode)
		fmt.Fprintf(r.out, "Started:  %s\n", status.StartedAt.Format(time.RFC3339))
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	}

	for i, t := range status.ProcessedTokens {
		if i >= len(r.printed) {
			r.printed = append(r.printed, "")
		}
		if r.printed[i] == t.Status {
			continue
		}
		r.printed[i] = t.Status
		r.printToken(t)
	}

	if status.Done() {
		r.printSummary(status)
	}
}

func (r *ConsoleReporter) printToken(t domain.ProcessedToken) {
	line := fmt.Sprintf("[%s] %-10s %18s  %-10s", r.now().Format("15:04:05"), symbolOf(t), t.Amount, t.Status)
	if t.Reason != "" {
		line += " " + t.Reason
	}
	if t.ApprovalTxHash != nil && t.Status == domain.StatusConfirming {
		line += " approval " + t.ApprovalTxHash.Hex()
	}
	if t.TxHash != nil {
		line += " tx " + t.TxHash.Hex()
	}
	fmt.Fprintln(r.out, line)
}

func (r *ConsoleReporter) printSummary(status domain.BatchStatus) {
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	if status.Status == domain.BatchError {
		fmt.Fprintf(r.out, "SWEEP FAILED: %s\n", status.Error)
	} else {
		s := status.Summary()
		elapsed := time.Duration(0)
		if status.FinishedAt != nil {
			elapsed = status.FinishedAt.Sub(status.StartedAt).Round(time.Millisecond)
		}
		fmt.Fprintf(r.out, "SWEEP COMPLETE in %s: %d tokens, %d swapped, %d skipped, %d failed\n",
			elapsed, s.Total, s.Success, s.Skipped, s.Failed)
	}
	fmt.Fprintln(r.out, "================================================================================")
}

func (r *ConsoleReporter) targetLabel(status domain.BatchStatus) string {
	if a, ok := r.registry.GetToken(r.chainID, status.Target); ok {
		return fmt.Sprintf("%s (%s)", a.Symbol(), status.Target.Hex())
	}
	return status.Target.Hex()
}

func symbolOf(t domain.ProcessedToken) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()[:8]
}
