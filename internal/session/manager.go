package session

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 10 * time.Second
	DefaultPingTimeout = 5 * time.Second
)

// Transport is the broker connection the session drives.
// It is implemented by *mqtt.Transport.
type Transport interface {
	// Connect performs a single connection attempt.
	Connect(ctx context.Context) error

	// Disconnect tears down any connection state, complete or partial.
	Disconnect()

	// Publish sends a non-retained message.
	Publish(topic string, payload []byte, qos byte) error

	// Receive returns the next inbound message, waiting at most timeout.
	Receive(timeout time.Duration) (mqtt.Message, bool)

	// Ping checks the session is still usable.
	Ping(ctx context.Context) error

	// IsConnected reports the transport's own view of the link.
	IsConnected() bool
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds configuration for the session manager.
type Config struct {
	// Transport is the broker connection. Required.
	Transport Transport

	// MaxAttempts is the number of consecutive failed connects tolerated.
	// Default: 3.
	MaxAttempts int

	// RetryDelay is the fixed wait between failed attempts.
	// Default: 10 seconds. Negative means no wait.
	RetryDelay time.Duration

	// PingTimeout bounds one liveness probe.
	// Default: 5 seconds.
	PingTimeout time.Duration

	// Sleep waits between attempts. Default: a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now is the clock for activity stamps. Default: time.Now.
	Now func() time.Time
}

// Manager owns the broker session state machine.
//
// States move DISCONNECTED → CONNECTING → CONNECTED, back to DISCONNECTED
// on a failed attempt or probe, and to FATAL once MaxAttempts consecutive
// connects have failed. FATAL is terminal.
//
// Thread Safety:
//   - EnsureConnected, ProbeLiveness and Disconnect are meant to be called
//     from the control loop goroutine only.
//   - Accessors (State, Healthy, LastActivity, RemainingAttempts) are safe
//     from any goroutine.
type Manager struct {
	transport   Transport
	maxAttempts int
	retryDelay  time.Duration
	pingTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time

	mu           sync.RWMutex
	state        State
	remaining    int
	lastActivity time.Time

	onChange   func(from, to State)
	onChangeMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a session manager in the DISCONNECTED state.
//
// Parameters:
//   - cfg: Configuration for the manager
//
// Returns:
//   - *Manager: Ready to connect (call EnsureConnected)
func New(cfg Config) *Manager {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		transport:   cfg.Transport,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		pingTimeout: pingTimeout,
		sleep:       sleep,
		now:         now,
		state:       StateDisconnected,
		remaining:   maxAttempts,
	}
}

// EnsureConnected brings the session to CONNECTED, retrying with a fixed
// delay until the attempt budget is spent.
//
// When already CONNECTED it returns immediately without touching the
// transport. Once FATAL it always returns ErrRetriesExhausted.
//
// Parameters:
//   - ctx: Cancels the wait between attempts and the attempt itself
//
// Returns:
//   - error: nil when connected, ErrRetriesExhausted, or ctx.Err()
func (m *Manager) EnsureConnected(ctx context.Context) error {
	for {
		switch m.State() {
		case StateConnected:
			return nil
		case StateFatal:
			return ErrRetriesExhausted
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		m.transition(StateConnecting)

		err := m.transport.Connect(ctx)
		if err == nil {
			m.mu.Lock()
			m.remaining = m.maxAttempts
			m.lastActivity = m.now()
			m.mu.Unlock()
			m.transition(StateConnected)

			if logger := m.getLogger(); logger != nil {
				logger.Info("connected to broker")
			}
			return nil
		}

		m.transport.Disconnect()

		if ctxErr := ctx.Err(); ctxErr != nil {
			m.transition(StateDisconnected)
			return ctxErr
		}

		if logger := m.getLogger(); logger != nil {
			logger.Warn("broker connect failed",
				"error", err,
				"attempts_left", m.RemainingAttempts()-1,
				"retry_in", m.retryDelay.String(),
			)
		}

		// The session stays CONNECTING through the backoff; the budget is
		// charged only once the wait has run.
		if m.retryDelay > 0 {
			if err := m.sleep(ctx, m.retryDelay); err != nil {
				m.transition(StateDisconnected)
				return err
			}
		}

		m.mu.Lock()
		m.remaining--
		remaining := m.remaining
		m.mu.Unlock()

		if remaining <= 0 {
			m.transition(StateFatal)
			if logger := m.getLogger(); logger != nil {
				logger.Error("broker connect retries exhausted",
					"attempts", m.maxAttempts,
					"error", err,
				)
			}
			return ErrRetriesExhausted
		}
		m.transition(StateDisconnected)
	}
}

// ProbeLiveness asks the transport whether the session is still usable.
//
// On failure the transport is torn down and the session drops to
// DISCONNECTED, so the next EnsureConnected makes a fresh attempt.
//
// Returns:
//   - error: ErrNotConnected if not CONNECTED, or the transport's ping error
func (m *Manager) ProbeLiveness(ctx context.Context) error {
	if m.State() != StateConnected {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	if err := m.transport.Ping(pingCtx); err != nil {
		m.transport.Disconnect()
		m.transition(StateDisconnected)
		if logger := m.getLogger(); logger != nil {
			logger.Warn("broker liveness probe failed", "error", err)
		}
		return err
	}

	m.Touch()
	return nil
}

// Disconnect moves a CONNECTED session to DISCONNECTED.
// It is a no-op in any other state.
func (m *Manager) Disconnect() {
	if m.State() != StateConnected {
		return
	}
	m.transport.Disconnect()
	m.transition(StateDisconnected)
}

// Touch records traffic on a live session.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateConnected {
		m.lastActivity = m.now()
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the session is CONNECTED.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Healthy reports false once the session is FATAL.
func (m *Manager) Healthy() bool {
	return m.State() != StateFatal
}

// LastActivity returns the time of the last successful connect, probe or Touch.
func (m *Manager) LastActivity() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActivity
}

// RemainingAttempts returns the connect attempts left before FATAL.
func (m *Manager) RemainingAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.remaining
}

// OnStateChange sets a callback invoked after every state transition.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.onChangeMu.Lock()
	m.onChange = fn
	m.onChangeMu.Unlock()
}

// SetLogger sets the logger for this manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

func (m *Manager) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

// transition sets the state and notifies the observer.
func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}

	m.onChangeMu.RLock()
	fn := m.onChange
	m.onChangeMu.RUnlock()
	if fn != nil {
		fn(from, to)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
