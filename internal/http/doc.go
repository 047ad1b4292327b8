// Package http implements the http_manager module.
//
// The module binds http_manager.manager, a listener.Manager of *Server.
// Each Server is a gin engine with recovery, tracing, request metrics and
// CORS middleware. Modules attach routes to Server.Engine during their
// Start; serving begins after every module has started.
package http
