package telemetry

import "errors"

var (
	// ErrNotConnected is returned when a reading is published without a live session.
	ErrNotConnected = errors.New("telemetry: session not connected")

	// ErrPublishFailed is returned when the transport rejects a reading.
	ErrPublishFailed = errors.New("telemetry: publish failed")
)
