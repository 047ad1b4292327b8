/*
Package resilience provides a circuit breaker for storage calls.

# Overview

This package implements the circuit breaker pattern to prevent cascading failures
and provide graceful degradation when services become unavailable or slow.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Per-call timeouts
- Error classification so expected misses do not trip
- State change callbacks for monitoring
- Thread-safe operations

# Usage

	// Create a breaker around a storage backend
	breaker := resilience.New("application_metric_dao", resilience.Settings{
		Timeout:     30 * time.Second,
		CallTimeout: 3 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storage.ErrNotFound)
		},
	})

	// Execute a call through the breaker
	existing, err := resilience.Call(ctx, breaker, func(ctx context.Context) (*table.ApplicationMetric, error) {
		return dao.Get(ctx, key)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
