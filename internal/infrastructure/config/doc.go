// Package config provides 12-factor configuration management for the collector.
//
// Process configuration is loaded from environment variables with sensible
// defaults. The module list comes from an application file (YAML or TOML,
// picked by extension) whose path is COLLECTOR_CONFIG_FILE or the -config flag.
//
// Configuration Sections:
//   - Logging: Log level and output format
//   - Pipeline: Default queue, flush, retry and backpressure settings for workers
//   - Application: Modules, the provider selected for each and its settings
//
// Example Application File:
//
//	modules:
//	  storage:
//	    provider: nats
//	    config:
//	      url: nats://localhost:4222
//	  analysis_metric:
//	    provider: default
//	    config:
//	      flush_interval_ms: 1000
//
// Environment Variables:
//   - COLLECTOR_CONFIG_FILE, INSTANCE_ID, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - PIPELINE_QUEUE_SIZE, PIPELINE_FLUSH_INTERVAL, PIPELINE_FLUSH_THRESHOLD
//   - PIPELINE_RETRY_BUDGET, PIPELINE_DAO_TIMEOUT, PIPELINE_BACKPRESSURE
package config
