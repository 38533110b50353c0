package controlloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/actuator"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// Defaults for Config fields left at zero.
const (
	DefaultDrainTimeout    = 10 * time.Second
	DefaultPublishInterval = 10 * time.Second
	DefaultPruneInterval   = time.Hour
	DefaultRetention       = 7 * 24 * time.Hour
)

// Session is the broker session. Implemented by *session.Manager.
type Session interface {
	EnsureConnected(ctx context.Context) error
	ProbeLiveness(ctx context.Context) error
}

// Dispatcher drains inbound messages. Implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	ProcessPending(timeout time.Duration) int
}

// Actuator owns the LED. Implemented by *actuator.Reconciler.
type Actuator interface {
	Apply(ctx context.Context) (actuator.Command, bool, error)
	ToggleLocal()
}

// Button reports press-release edges. Implemented by *actuator.ButtonEdge.
type Button interface {
	Poll() (bool, error)
}

// Sensor produces readings. Implemented by the hardware sensors.
type Sensor interface {
	Sample() telemetry.Reading
}

// Publisher sends readings. Implemented by *telemetry.Publisher.
type Publisher interface {
	PublishReading(ctx context.Context, r telemetry.Reading) error
}

// Pruner trims local history. Implemented by *journal.Store.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config wires the loop's collaborators.
type Config struct {
	Session    Session    // Required
	Dispatcher Dispatcher // Required
	Actuator   Actuator   // Required
	Button     Button     // Required
	Sensor     Sensor     // Required
	Publisher  Publisher  // Required

	// Pruner is optional. When set it runs every PruneInterval from the
	// publish step, deleting history older than Retention.
	Pruner        Pruner
	PruneInterval time.Duration
	Retention     time.Duration

	// DrainTimeout bounds inbound processing per iteration. Default: 10s.
	DrainTimeout time.Duration

	// PublishInterval is the minimum gap between readings. Default: 10s.
	PublishInterval time.Duration

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Loop runs the node's single control thread.
//
// Each Step does, in order: ensure the broker session, drain inbound
// commands, apply them, probe the session, publish a reading if one is
// due, then poll the button. Once the session reports its retry budget
// exhausted the loop is fatal and makes no further calls to anything.
type Loop struct {
	cfg Config

	lastPublish time.Time
	lastPrune   time.Time
	fatal       atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a loop. The first Step publishes immediately.
func New(cfg Config) (*Loop, error) {
	switch {
	case cfg.Session == nil:
		return nil, fmt.Errorf("controlloop: session is required")
	case cfg.Dispatcher == nil:
		return nil, fmt.Errorf("controlloop: dispatcher is required")
	case cfg.Actuator == nil:
		return nil, fmt.Errorf("controlloop: actuator is required")
	case cfg.Button == nil:
		return nil, fmt.Errorf("controlloop: button is required")
	case cfg.Sensor == nil:
		return nil, fmt.Errorf("controlloop: sensor is required")
	case cfg.Publisher == nil:
		return nil, fmt.Errorf("controlloop: publisher is required")
	}

	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Loop{cfg: cfg}, nil
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Loop) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

// Run calls Step until ctx is cancelled or the session is exhausted.
//
// Returns:
//   - ctx.Err() on cancellation
//   - session.ErrRetriesExhausted once fatal
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := l.Step(ctx)
		if errors.Is(err, session.ErrRetriesExhausted) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

// Step runs one iteration.
//
// It returns session.ErrRetriesExhausted when the loop is, or has just
// become, fatal, and ctx.Err() if the session wait was cancelled. Every
// other failure in the iteration is logged and the step continues.
func (l *Loop) Step(ctx context.Context) error {
	if l.fatal.Load() {
		return session.ErrRetriesExhausted
	}

	if err := l.cfg.Session.EnsureConnected(ctx); err != nil {
		if errors.Is(err, session.ErrRetriesExhausted) {
			l.fatal.Store(true)
			if logger := l.getLogger(); logger != nil {
				logger.Error("control loop stopped: broker unreachable")
			}
		}
		return err
	}

	if n := l.cfg.Dispatcher.ProcessPending(l.cfg.DrainTimeout); n > 0 {
		if logger := l.getLogger(); logger != nil {
			logger.Debug("processed inbound messages", "count", n)
		}
	}
	l.apply(ctx)

	if err := l.cfg.Session.ProbeLiveness(ctx); err != nil {
		if logger := l.getLogger(); logger != nil {
			logger.Warn("liveness probe failed", "error", err)
		}
	}

	now := l.cfg.Now()
	if now.Sub(l.lastPublish) >= l.cfg.PublishInterval {
		l.publish(ctx, now)
	}

	l.pollButton(ctx)
	return nil
}

// Healthy reports false once the loop is fatal.
func (l *Loop) Healthy() bool {
	return !l.fatal.Load()
}

func (l *Loop) apply(ctx context.Context) {
	if _, _, err := l.cfg.Actuator.Apply(ctx); err != nil {
		if logger := l.getLogger(); logger != nil {
			logger.Warn("actuator write failed", "error", err)
		}
	}
}

func (l *Loop) publish(ctx context.Context, now time.Time) {
	l.lastPublish = now
	reading := l.cfg.Sensor.Sample()

	logger := l.getLogger()
	if logger != nil {
		logger.Info("reading sampled",
			"temperature", fmt.Sprintf("Temperature: %s°C", telemetry.FormatTemperature(reading.Temperature)),
			"humidity", fmt.Sprintf("Humidity: %s%%", telemetry.FormatHumidity(reading.Humidity)),
		)
	}

	if !reading.Valid() && logger != nil {
		logger.Warn("sensor reading invalid, publishing as-is",
			"temperature", reading.Temperature,
			"humidity", reading.Humidity,
		)
	}

	if err := l.cfg.Publisher.PublishReading(ctx, reading); err != nil && logger != nil {
		logger.Warn("reading not published", "error", err)
	}

	if l.cfg.Pruner != nil && now.Sub(l.lastPrune) >= l.cfg.PruneInterval {
		l.lastPrune = now
		deleted, err := l.cfg.Pruner.Prune(ctx, l.cfg.Retention)
		switch {
		case err != nil && logger != nil:
			logger.Warn("journal prune failed", "error", err)
		case deleted > 0 && logger != nil:
			logger.Info("journal pruned", "rows", deleted)
		}
	}
}

func (l *Loop) pollButton(ctx context.Context) {
	released, err := l.cfg.Button.Poll()
	if err != nil {
		if logger := l.getLogger(); logger != nil {
			logger.Warn("button read failed", "error", err)
		}
		return
	}
	if !released {
		return
	}

	l.cfg.Actuator.ToggleLocal()
	l.apply(ctx)
}
