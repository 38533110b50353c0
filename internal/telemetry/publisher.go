package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

// readingQoS is the QoS for both reading feeds. A lost sample is replaced
// by the next one within a period.
const readingQoS byte = 0

// Transport publishes raw payloads. Implemented by *mqtt.Transport.
type Transport interface {
	Publish(topic string, payload []byte, qos byte) error
}

// Session reports whether the broker session is up.
// Implemented by *session.Manager.
type Session interface {
	IsConnected() bool
	Touch()
}

// Recorder is an extra sink for published readings (journal, time series).
type Recorder interface {
	RecordReading(ctx context.Context, r Reading) error
}

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
}

// Publisher formats readings and publishes them on the feed topics.
//
// There is no retry: a failed reading is skipped and the next period
// produces a fresh one.
type Publisher struct {
	transport Transport
	session   Session
	topics    mqtt.Topics

	recorders   []Recorder
	recordersMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewPublisher creates a publisher for one device's feeds.
func NewPublisher(transport Transport, sess Session, topics mqtt.Topics) *Publisher {
	return &Publisher{
		transport: transport,
		session:   sess,
		topics:    topics,
	}
}

// AddRecorder registers a sink that receives every successfully published reading.
func (p *Publisher) AddRecorder(r Recorder) {
	p.recordersMu.Lock()
	p.recorders = append(p.recorders, r)
	p.recordersMu.Unlock()
}

// SetLogger sets the logger for recorder failures.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// PublishReading publishes temperature then humidity at QoS 0.
//
// Both feeds are attempted even if the first fails. NaN values are
// published as-is ("nan"). Recorders run only when both publishes
// succeeded, and their errors are logged rather than returned.
//
// Parameters:
//   - ctx: Passed to recorders
//   - r: The sample to publish
//
// Returns:
//   - error: ErrNotConnected, or ErrPublishFailed wrapping each transport error
func (p *Publisher) PublishReading(ctx context.Context, r Reading) error {
	if !p.session.IsConnected() {
		return ErrNotConnected
	}

	var errs []error
	if err := p.transport.Publish(p.topics.Temperature(), []byte(FormatTemperature(r.Temperature)), readingQoS); err != nil {
		errs = append(errs, fmt.Errorf("%w: temperature: %w", ErrPublishFailed, err))
	}
	if err := p.transport.Publish(p.topics.Humidity(), []byte(FormatHumidity(r.Humidity)), readingQoS); err != nil {
		errs = append(errs, fmt.Errorf("%w: humidity: %w", ErrPublishFailed, err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.session.Touch()
	p.record(ctx, r)
	return nil
}

func (p *Publisher) record(ctx context.Context, r Reading) {
	p.recordersMu.RLock()
	recorders := make([]Recorder, len(p.recorders))
	copy(recorders, p.recorders)
	p.recordersMu.RUnlock()

	for _, rec := range recorders {
		if err := rec.RecordReading(ctx, r); err != nil {
			p.loggerMu.RLock()
			logger := p.logger
			p.loggerMu.RUnlock()
			if logger != nil {
				logger.Warn("failed to record reading", "error", err)
			}
		}
	}
}
