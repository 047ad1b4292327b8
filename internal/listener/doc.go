// Package listener shares network endpoints between modules.
//
// A transport module that needs a socket asks its Manager for the endpoint
// at host:port with CreateIfAbsent. The first request binds; every later
// request for the same pair receives the same Endpoint, so several modules
// can attach handlers to one server. The grpc_manager and http_manager
// modules each own one Manager, built with a Driver for their server type.
package listener
