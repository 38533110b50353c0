package hardware

import "errors"

var (
	// ErrUnknownPin is returned for a pin that was not requested at open time.
	ErrUnknownPin = errors.New("hardware: unknown pin")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("hardware: closed")
)
