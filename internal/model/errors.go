package model

import "errors"

// Error classes shared by collaborators. Callers wrap them with %w so the
// poller can decide whether to abort the poll, skip a message, or carry on.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrTransport      = errors.New("transport failure")
	ErrNoAssignment   = errors.New("no on-call assignment")
	ErrPersistence    = errors.New("ledger failure")
)
