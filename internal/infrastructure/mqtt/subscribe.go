package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is an inbound publication held in the inbox until the control
// loop picks it up.
type Message struct {
	Topic      string
	Payload    []byte
	QoS        byte
	Retained   bool
	ReceivedAt time.Time
}

// Subscribe declares a topic filter for this session.
//
// The filter is recorded and sent on every successful Connect. If the
// transport is already connected it is also sent immediately. Messages
// are not delivered through a callback; they are queued and returned by
// Receive.
//
// Parameters:
//   - topic: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (t *Transport) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	t.subMu.Lock()
	found := false
	for i := range t.subscriptions {
		if t.subscriptions[i].topic == topic {
			t.subscriptions[i].qos = qos
			found = true
			break
		}
	}
	if !found {
		t.subscriptions = append(t.subscriptions, subscription{topic: topic, qos: qos})
	}
	t.subMu.Unlock()

	if !t.IsConnected() {
		return nil
	}

	token := t.getClient().Subscribe(topic, qos, t.enqueue)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of declared subscriptions.
func (t *Transport) SubscriptionCount() int {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	return len(t.subscriptions)
}

// Receive returns the next queued message, waiting at most timeout.
//
// A timeout of zero or less polls the inbox without blocking.
//
// Returns:
//   - Message: The oldest queued message
//   - bool: false if nothing arrived in time
func (t *Transport) Receive(timeout time.Duration) (Message, bool) {
	if timeout <= 0 {
		select {
		case msg := <-t.inbox:
			return msg, true
		default:
			return Message{}, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-t.inbox:
		return msg, true
	case <-timer.C:
		return Message{}, false
	}
}

// Dropped returns how many messages were discarded because the inbox was full.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// enqueue is the paho callback for every subscription. It never blocks:
// when the inbox is full the newest message is dropped.
func (t *Transport) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	m := Message{
		Topic:      msg.Topic(),
		Payload:    append([]byte(nil), msg.Payload()...),
		QoS:        msg.Qos(),
		Retained:   msg.Retained(),
		ReceivedAt: time.Now(),
	}

	select {
	case t.inbox <- m:
	default:
		total := t.dropped.Add(1)
		if logger := t.getLogger(); logger != nil {
			logger.Warn("inbox full, dropping message",
				"topic", m.Topic,
				"dropped_total", total,
			)
		}
	}
}
