// Package logging provides structured logging for the DeepSleep agent.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting agent", "device_id", cfg.Device.ID)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log broker passwords or the InfluxDB token. Inbound payloads are
// logged truncated (see the command package) because they come from the
// network.
package logging
