// Command collector runs the APM collector.
//
// The collector receives metric and trace reports from agents, aggregates
// them per merge key in persistence workers and writes the aggregates to
// the configured storage.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - An application file selecting module providers, given with -config
//     or COLLECTOR_CONFIG_FILE; without one the default module set runs
//
// Usage:
//
//	./collector -config application.yaml
//
//	# Development mode (colored logs, debug level)
//	./collector -dev
//
// Signals:
//   - SIGINT, SIGTERM: stop receiving, flush every worker, exit
package main
