// Package logging provides structured logging for the climate node.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same default fields and level filtering.
//
// # Features
//
//   - JSON output for production (picked up by journald or a log shipper)
//   - Text output for a serial or SSH console on the bench
//   - Default fields (service, version) on all log entries
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("published reading", "temperature", "23.5")
//
// Never log the broker key or the InfluxDB token.
package logging
