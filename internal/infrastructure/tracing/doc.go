/*
Package tracing tags requests received by the collector with trace context.

# Overview

Every HTTP and gRPC request handled by the collector runs inside a span. The
trace id is a DistributedTraceID: propagated from the caller when the
X-Trace-ID header (x-trace-id metadata) carries a valid "a.b.c" id, freshly
generated otherwise. Span ids are random UUIDs. Finished spans are logged
through zap by a single collector goroutine.

# Usage

	tracer := tracing.New("collector", logger, id.Default())
	defer tracer.Close(ctx)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// gRPC server interceptors
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)),
		grpc.ChainStreamInterceptor(tracing.GRPCStreamInterceptor(tracer)),
	)

# Trace Format

- X-Trace-ID: the distributed trace id in text form, e.g. 1.42.17000000000001
- X-Span-ID: identifier of the current operation

# Performance

- Buffered span collection (1000 spans), dropped when full
- Async span processing
*/
package tracing
