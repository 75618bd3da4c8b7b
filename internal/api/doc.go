// Package api implements the HTTP transport for the GridLink resource
// directory.
//
// This package provides:
//   - GET on any href, returning the resource or one page of the list
//     (query parameters s, a and l select start, after and limit)
//   - PUT on client-writable singletons such as "/edev_0_ds"
//   - POST of mirror usage points to "/mup" and mirror meter readings to
//     "/mup_N", answering 201 with a Location header or 204 on update
//   - POST of DER controls to "/derp_P_derc" and PUT of a status command to
//     "/derp_P_derc_C"
//   - /health and the Prometheus /metrics endpoint
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// Handlers are thin: they parse the request, call one directory operation
// and map its error onto a status code. All state lives in the directory.
//
// # Graceful Degradation
//
// A persistence backend failing does not fail requests. /health reports
// "degraded" until the persistence hub recovers.
package api
