package dispatch

import "errors"

var (
	// ErrDuplicateTopic is returned when two bindings share a topic name.
	ErrDuplicateTopic = errors.New("dispatch: duplicate topic")

	// ErrInvalidTopic is returned for empty or wildcard topic names and nil handlers.
	ErrInvalidTopic = errors.New("dispatch: invalid topic")
)
