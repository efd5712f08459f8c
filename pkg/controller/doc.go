// Package controller contains HTTP middlewares and helper handlers used by the API server.
//
// Provided middlewares:
//   - WithCORS: Adds CORS headers for an origin allow-list and ends OPTIONS preflights.
//   - WithLogger: Attaches a request-scoped logger, request ID and caller IP to the context and logs access info.
//   - WithTimeout: Bounds the request context and answers 504 when the deadline passes first.
//
// Provided helpers:
//   - PprofMux: Returns a ServeMux exposing net/http/pprof handlers under PprofPrefix.
package controller
