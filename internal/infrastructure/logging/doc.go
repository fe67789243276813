// Package logging provides structured logging for the gateway.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for deployments, text output for a terminal
//   - service and version attached to every record
//   - level filtering (debug, info, warn, error)
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("receiver").Warn("fifo overflow, flushing")
package logging
