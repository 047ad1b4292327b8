// Package grpc implements the grpc_manager module.
//
// The module binds one service, grpc_manager.manager, holding a
// listener.Manager of *Server. Components that accept gRPC traffic look it
// up, call CreateIfAbsent for their host and port, and register their
// service on the returned Server before the module starts serving.
//
// Every Server carries:
//   - keepalive parameters for long-lived agent connections
//   - the tracing and metrics interceptors
//   - the standard health service
//   - server reflection (setting "reflection")
//
// Example application file entry:
//
//	grpc_manager:
//	  provider: default
//	  config:
//	    host: 0.0.0.0
//	    port: 11800
package grpc
