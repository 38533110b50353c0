package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/hardware"
)

// DigitalWriter drives an output pin. Implemented by hardware.GPIO.
type DigitalWriter interface {
	WriteDigital(pin int, level hardware.Level) error
}

// ChangeRecorder is notified after every applied write.
type ChangeRecorder interface {
	RecordActuatorChange(ctx context.Context, cmd Command, at time.Time) error
}

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Reconciler merges remote and local commands onto the LED pin.
//
// The most recent proposal wins. Proposals are only written to the pin by
// Apply, so the control loop decides when hardware changes. After Apply
// returns there is never a pending proposal and Current matches the level
// last written.
//
// Thread Safety:
//   - Propose, ToggleLocal and Apply are called from the control loop
//     goroutine; Current is safe from any goroutine.
type Reconciler struct {
	gpio DigitalWriter
	pin  int
	now  func() time.Time

	mu      sync.RWMutex
	current Command
	pending *Command

	recorders []ChangeRecorder

	logger Logger
}

// NewReconciler creates a reconciler for the LED on pin.
// The initial command is {Off, Local}, matching the pin's LOW start-up level.
func NewReconciler(gpio DigitalWriter, pin int) *Reconciler {
	return &Reconciler{
		gpio:    gpio,
		pin:     pin,
		now:     time.Now,
		current: Command{Level: Off, Source: SourceLocal},
	}
}

// AddRecorder registers a sink for applied changes.
func (r *Reconciler) AddRecorder(rec ChangeRecorder) {
	r.recorders = append(r.recorders, rec)
}

// SetLogger sets the logger for applied commands and recorder failures.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// Propose records cmd as the pending command, replacing any earlier one.
func (r *Reconciler) Propose(cmd Command) {
	r.mu.Lock()
	r.pending = &cmd
	r.mu.Unlock()
}

// ToggleLocal proposes the opposite of the effective level as a local command.
// The effective level is the pending proposal if any, else the current one.
func (r *Reconciler) ToggleLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	level := r.current.Level
	if r.pending != nil {
		level = r.pending.Level
	}

	next := On
	if level == On {
		next = Off
	}
	r.pending = &Command{Level: next, Source: SourceLocal}
}

// HandleRemote is the dispatch handler for the actuator feed.
func (r *Reconciler) HandleRemote(_ string, payload []byte) error {
	cmd := ParseRemote(payload)
	if r.logger != nil {
		r.logger.Info("remote command received", "payload", string(payload), "level", cmd.Level.String())
	}
	r.Propose(cmd)
	return nil
}

// Apply writes the pending proposal to the pin.
//
// HIGH is written for On and LOW for Off. On success the proposal becomes
// current. On a write failure it is discarded and current is unchanged.
//
// Returns:
//   - Command: The command now current
//   - bool: true if a write happened
//   - error: The GPIO write error, if any
func (r *Reconciler) Apply(ctx context.Context) (Command, bool, error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pending == nil {
		return r.Current(), false, nil
	}

	level := hardware.Low
	if pending.Level == On {
		level = hardware.High
	}
	if err := r.gpio.WriteDigital(r.pin, level); err != nil {
		return r.Current(), false, fmt.Errorf("writing actuator pin %d: %w", r.pin, err)
	}

	r.mu.Lock()
	r.current = *pending
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("actuator applied", "level", pending.Level.String(), "source", pending.Source.String())
	}

	at := r.now()
	for _, rec := range r.recorders {
		if err := rec.RecordActuatorChange(ctx, *pending, at); err != nil && r.logger != nil {
			r.logger.Warn("failed to record actuator change", "error", err)
		}
	}

	return *pending, true, nil
}

// Current returns the command last written to the pin.
func (r *Reconciler) Current() Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Pending reports whether a proposal is waiting for Apply.
func (r *Reconciler) Pending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending != nil
}
