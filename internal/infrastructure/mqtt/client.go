package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Transport wraps paho.mqtt.golang as the node's single broker session.
//
// Unlike a long-lived bus client it does not reconnect on its own. Each
// Connect builds a fresh paho client, re-sends the declared subscriptions
// and returns; when the link drops the transport just reports itself as
// disconnected and waits for the session manager to call Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - paho delivers messages on its own goroutines; they are only queued
//     into the inbox and handed out by Receive on the caller's goroutine.
type Transport struct {
	cfg      config.MQTTConfig
	topics   Topics
	clientID string

	// newClient builds the paho client for each connect attempt.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	client   pahomqtt.Client
	clientMu sync.RWMutex

	// subscriptions are re-sent on every successful connect.
	subscriptions []subscription
	subMu         sync.RWMutex

	inbox   chan Message
	dropped atomic.Uint64

	connected bool
	connMu    sync.RWMutex

	// logger for warnings (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds a declared topic filter for re-subscription on connect.
type subscription struct {
	topic string
	qos   byte
}

// New creates a transport for one device. It does not connect.
//
// Parameters:
//   - cfg: MQTT configuration from node.yaml
//   - device: Feed owner used for the status topic and LWT
//
// Returns:
//   - *Transport: Disconnected transport ready for Subscribe and Connect
func New(cfg config.MQTTConfig, device string) *Transport {
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "graylogic-node-" + uuid.NewString()[:8]
	}

	inboxSize := cfg.InboxSize
	if inboxSize < 1 {
		inboxSize = defaultInboxSize
	}

	return &Transport{
		cfg:       cfg,
		topics:    NewTopics(device),
		clientID:  clientID,
		newClient: pahomqtt.NewClient,
		inbox:     make(chan Message, inboxSize),
	}
}

// ClientID returns the MQTT client identifier in use.
func (t *Transport) ClientID() string {
	return t.clientID
}

// Connect performs one connection attempt to the broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures the status LWT when the status feed is enabled
//  3. Connects, bounded by ctx and the connect timeout
//  4. Re-sends every declared subscription
//  5. Publishes the retained "online" status when enabled
//
// On failure the partially built client is left in place so the caller
// can tear it down with Disconnect.
//
// Parameters:
//   - ctx: Context for cancellation of the attempt
//
// Returns:
//   - error: ErrConnectionFailed or ErrSubscribeFailed, wrapped with the cause
func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	opts := buildClientOptions(t.cfg, t.clientID)
	if t.cfg.StatusTopic {
		configureLWT(opts, t.topics.Status())
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleConnectionLost(err)
	})

	client := t.newClient(opts)
	t.clientMu.Lock()
	t.client = client
	t.clientMu.Unlock()

	if err := waitToken(ctx, client.Connect(), defaultConnectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	t.setConnected(true)

	if err := t.restoreSubscriptions(ctx, client); err != nil {
		t.setConnected(false)
		return err
	}

	if t.cfg.StatusTopic {
		token := client.Publish(t.topics.Status(), 1, true, StatusOnline)
		if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Warn("failed to publish online status", "error", err)
			}
		}
	}

	return nil
}

// restoreSubscriptions sends every declared subscription on a fresh session.
func (t *Transport) restoreSubscriptions(ctx context.Context, client pahomqtt.Client) error {
	t.subMu.RLock()
	subs := make([]subscription, len(t.subscriptions))
	copy(subs, t.subscriptions)
	t.subMu.RUnlock()

	for _, sub := range subs {
		token := client.Subscribe(sub.topic, sub.qos, t.enqueue)
		if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, sub.topic, err)
		}
	}
	return nil
}

// handleConnectionLost is called by paho when the link drops.
func (t *Transport) handleConnectionLost(err error) {
	t.setConnected(false)
	if logger := t.getLogger(); logger != nil {
		logger.Warn("broker connection lost", "error", err)
	}
}

// Disconnect tears down the current paho client, if any.
// It is safe to call on a transport that never connected.
func (t *Transport) Disconnect() {
	t.clientMu.RLock()
	client := t.client
	t.clientMu.RUnlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	t.setConnected(false)
}

// Close publishes the graceful "offline" status when enabled, then disconnects.
func (t *Transport) Close() error {
	if t.cfg.StatusTopic && t.IsConnected() {
		client := t.getClient()
		token := client.Publish(t.topics.Status(), 1, true, StatusOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}
	t.Disconnect()
	return nil
}

// IsConnected returns the current connection state.
func (t *Transport) IsConnected() bool {
	t.connMu.RLock()
	connected := t.connected
	t.connMu.RUnlock()
	if !connected {
		return false
	}

	client := t.getClient()
	return client != nil && client.IsConnectionOpen()
}

// Ping checks that the session is still usable.
//
// With the status feed disabled (the default) this is a local check only:
// it reports whether paho still holds the connection open and sends
// nothing. The broker round trip in that mode is paho's own PINGREQ on the
// keepalive interval, which closes the connection when the broker stops
// answering, and the next Ping then fails.
//
// With the status feed enabled it also publishes the retained "online"
// status at QoS 1 and waits for the PUBACK, which is a real round trip
// through the broker.
//
// Parameters:
//   - ctx: Bounds the round trip; the caller sets the ping timeout
//
// Returns:
//   - error: ErrNotConnected, or ErrPingFailed wrapped with the cause
func (t *Transport) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPingFailed, err)
	}
	if !t.IsConnected() {
		return ErrNotConnected
	}
	if !t.cfg.StatusTopic {
		return nil
	}

	token := t.getClient().Publish(t.topics.Status(), 1, true, StatusOnline)
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPingFailed, err)
	}
	return nil
}

// SetLogger sets a logger for connection and inbox warnings.
// If not set, warnings are silently ignored.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (t *Transport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

func (t *Transport) getClient() pahomqtt.Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return t.client
}

func (t *Transport) setConnected(connected bool) {
	t.connMu.Lock()
	t.connected = connected
	t.connMu.Unlock()
}
