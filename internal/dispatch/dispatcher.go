package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

// Receiver yields inbound messages. Implemented by *mqtt.Transport.
type Receiver interface {
	Receive(timeout time.Duration) (mqtt.Message, bool)
}

// Handler processes one message on a bound topic.
//
// Handlers run synchronously on the goroutine that called ProcessPending.
// A returned error is logged and does not stop the drain.
type Handler func(topic string, payload []byte) error

// Topic binds a subscribed topic to its handler.
type Topic struct {
	Name    string
	QoS     byte
	Handler Handler
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher drains the transport inbox and routes each message to the
// handler bound to its exact topic.
//
// The topic set is fixed at construction.
type Dispatcher struct {
	receiver Receiver
	topics   []Topic
	byName   map[string]Handler
	now      func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a dispatcher over a fixed set of topics.
//
// Parameters:
//   - receiver: Source of inbound messages
//   - topics: Topic bindings; names must be non-empty, unique and free of wildcards
//
// Returns:
//   - *Dispatcher: Ready to drain
//   - error: ErrInvalidTopic or ErrDuplicateTopic
func New(receiver Receiver, topics ...Topic) (*Dispatcher, error) {
	byName := make(map[string]Handler, len(topics))
	for _, topic := range topics {
		if topic.Name == "" || strings.ContainsAny(topic.Name, "+#") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, topic.Name)
		}
		if topic.Handler == nil {
			return nil, fmt.Errorf("%w: %q has no handler", ErrInvalidTopic, topic.Name)
		}
		if _, exists := byName[topic.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTopic, topic.Name)
		}
		byName[topic.Name] = topic.Handler
	}

	bound := make([]Topic, len(topics))
	copy(bound, topics)

	return &Dispatcher{
		receiver: receiver,
		topics:   bound,
		byName:   byName,
		now:      time.Now,
	}, nil
}

// Topics returns the bound topics in construction order.
func (d *Dispatcher) Topics() []Topic {
	out := make([]Topic, len(d.topics))
	copy(out, d.topics)
	return out
}

// ProcessPending drains inbound messages for up to timeout.
//
// Messages are handled one at a time in arrival order. The call waits
// for new messages until the budget is spent, so a quiet broker costs
// the full timeout. With a timeout of zero or less it only drains what
// is already queued and returns as soon as the inbox is empty.
//
// Returns:
//   - int: Number of messages delivered to a handler
func (d *Dispatcher) ProcessPending(timeout time.Duration) int {
	deadline := d.now().Add(timeout)
	dispatched := 0

	for {
		remaining := deadline.Sub(d.now())
		if remaining <= 0 {
			if timeout > 0 {
				return dispatched
			}
			remaining = 0
		}

		msg, ok := d.receiver.Receive(remaining)
		if !ok {
			return dispatched
		}
		if d.dispatch(msg) {
			dispatched++
		}
	}
}

// dispatch runs the handler bound to msg.Topic, if any. A message that
// reached its handler counts as handled even if the handler panicked.
func (d *Dispatcher) dispatch(msg mqtt.Message) (handled bool) {
	handler, ok := d.byName[msg.Topic]
	if !ok {
		if logger := d.getLogger(); logger != nil {
			logger.Debug("dropping message on unbound topic", "topic", msg.Topic)
		}
		return false
	}

	handled = true
	defer func() {
		if r := recover(); r != nil {
			if logger := d.getLogger(); logger != nil {
				logger.Error("message handler panic recovered",
					"topic", msg.Topic,
					"panic", r,
				)
			}
		}
	}()

	if err := handler(msg.Topic, msg.Payload); err != nil {
		if logger := d.getLogger(); logger != nil {
			logger.Warn("message handler returned error",
				"topic", msg.Topic,
				"error", err,
			)
		}
	}
	return true
}

// SetLogger sets the logger for dropped messages and handler failures.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dispatcher) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}
