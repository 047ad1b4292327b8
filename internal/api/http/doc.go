// Package http implements the receiver and telemetry modules.
//
// The receiver attaches JSON ingestion routes under /v1 to the shared HTTP
// listener. Each route decodes a JSON array of one entity type, validates
// the whole batch and routes every record to the persistence worker that
// owns the type:
//
//	POST /v1/metrics/application-reference  -> application_reference_metric
//	POST /v1/metrics/application            -> application_metric
//	POST /v1/traces/global                  -> global_trace
//	POST /v1/segments                       -> segment
//
// Responses carry the number of records accepted:
//
//	202  every record accepted
//	400  malformed batch, nothing routed
//	429  worker queue full or agent rate limited
//	413  body or batch over its limit
//	503  collector shutting down
//
// The gRPC side is health only: the receiver marks collector.receiver
// SERVING on the shared gRPC listener while its routes accept reports.
//
// Telemetry serves GET /metrics and GET /health on the same listener.
package http
