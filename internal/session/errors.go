package session

import "errors"

// Domain-specific errors for the broker session.
var (
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrRetriesExhausted is returned once the connect budget is spent.
	// The session is FATAL from then on and never touches the transport again.
	ErrRetriesExhausted = errors.New("session: connect retries exhausted")
)
