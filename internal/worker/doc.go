/*
Package worker runs the aggregation and persistence pipeline.

A Router maps a stable worker ID to one Worker. Producers call Route with
the ID of the worker that owns a record type; the router never transforms
or buffers records itself.

PersistenceWorker is the only worker kind. Each one owns:

  - a bounded queue (Options.QueueSize) fed by Enqueue
  - a merge buffer keyed by the record's merge key
  - a circuit breaker around its DAO

Records with the same key are merged in the buffer as they arrive. The
buffer is flushed when it holds FlushThreshold keys or when FlushInterval
elapses. In ModeMerge a flush reads the stored value and writes
stored.Merge(buffered); ModeOverwrite writes the buffered value directly.

Backpressure:

	PolicyBlock   Enqueue waits for space or ctx
	PolicyReject  Enqueue fails with ErrQueueFull

Stop closes the worker to new records, consumes everything already
accepted and flushes once more before returning. A key whose save keeps
failing is dropped after RetryBudget attempts.
*/
package worker
