/*
Package monitoring provides metrics collection for the collector.

# Overview

This package implements Prometheus-based metrics on a collector-owned
registry, tracking ingestion requests, the persistence pipeline and
listeners.

# Features

- HTTP request metrics (latency, throughput, size)
- gRPC call metrics (latency, status codes)
- Routing outcomes per worker (accepted, rejected, stopped)
- Worker queue depth and buffered merge keys
- Flush duration, flush errors by stage, saved and dropped entries
- Bound listeners by kind

# Usage

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time a flush
	timer := monitoring.NewTimer(metrics, "application_metric")
	// ... flush ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
