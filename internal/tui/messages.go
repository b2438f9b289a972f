package tui

import "oncallcheck/internal/model"

// Async message types for Bubble Tea commands.

type entriesLoadedMsg struct {
	entries []model.LedgerEntry
	err     error
}

type statusMsg string
