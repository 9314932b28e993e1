// Package ui provides the Bubble Tea dashboard for the token sweeper.
package ui

import (
	holdingsDomain "github.com/fd1az/token-sweeper/business/holdings/domain"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
)

// Message types for TUI updates

// BatchMsg carries a batch snapshot after every sweep update.
type BatchMsg struct {
	Status domain.BatchStatus
}

// HoldingsMsg carries the latest significant-holdings snapshot.
type HoldingsMsg struct {
	Snapshot *holdingsDomain.Snapshot
}

// ConnectionStatusMsg is sent when a collaborator's status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Detail    string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "rpc", "wallet", "quote"
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}
