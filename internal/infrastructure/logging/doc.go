// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every component receives a named child logger so entries can be filtered
// by subsystem (module, worker, listener, receiver).
//
// Example Usage:
//
//	logger := logging.NewFromLevel("info", false)
//	workers := logger.Component("worker")
//	workers.Info("Flush completed", zap.Int("worker_id", 1), zap.Int("saved", 42))
package logging
