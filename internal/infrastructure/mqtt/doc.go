// Package mqtt provides the broker transport for the climate node.
//
// This package manages:
//   - One connection attempt at a time to the broker (no hidden reconnects)
//   - Message publishing with QoS guarantees
//   - Declared subscriptions, re-sent on every connect
//   - A bounded inbox drained by the control loop
//   - Last Will and Testament (LWT) on the status feed
//   - A liveness probe that round-trips through the broker
//
// # Architecture
//
// The node talks to a single broker (Adafruit IO by default) using the
// feed scheme <device>/feeds/<feed>:
//
//	sensor → temperatura, umidade → broker → dashboard
//	dashboard → botao-on-slash-off → broker → inbox → LED
//
// Retry policy lives in the session package. This package reports
// failures and leaves the decision to retry to its caller.
//
// # Security Considerations
//
//   - Set mqtt.broker.tls for brokers that require it (port 8883 on Adafruit IO)
//   - The broker key is sent as the MQTT password and must never be logged
//
// # Usage
//
//	transport := mqtt.New(cfg.MQTT, cfg.Node.Device)
//	topics := mqtt.NewTopics(cfg.Node.Device)
//	_ = transport.Subscribe(topics.Actuator(), 1)
//
//	if err := transport.Connect(ctx); err != nil {
//	    transport.Disconnect()
//	}
//
//	if msg, ok := transport.Receive(time.Second); ok {
//	    fmt.Printf("%s = %s\n", msg.Topic, msg.Payload)
//	}
package mqtt
