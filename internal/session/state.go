package session

// State is the lifecycle state of the broker session.
type State int

const (
	// StateDisconnected is the initial state and the state after any failure
	// that still leaves retry budget.
	StateDisconnected State = iota

	// StateConnecting is held for the duration of one connect attempt.
	StateConnecting

	// StateConnected means the last connect or probe succeeded.
	StateConnected

	// StateFatal is terminal. It is entered when the retry budget reaches zero.
	StateFatal
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
