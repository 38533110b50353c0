// Package session keeps the node's single broker session alive.
//
// The Manager is a small state machine over a Transport:
//
//	DISCONNECTED → CONNECTING → CONNECTED
//	      ↑              │            │
//	      └── failure ───┘    probe failure
//	                     │
//	          budget spent → FATAL (terminal)
//
// A failed attempt is torn down, waits a fixed delay (default 10s) and
// then costs one unit of the retry budget (default 3). The last failure
// waits out its delay too before the session goes FATAL. A successful
// connect restores
// the full budget. Once FATAL, the manager returns ErrRetriesExhausted
// without touching the transport again, and the process is expected to
// exit so its supervisor can restart it.
package session
