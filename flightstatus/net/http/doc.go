// Package http exposes the flight-status access layer over HTTP.
//
// The surface is small: one resolution endpoint, one batch endpoint, a
// dependency-aware health endpoint, an operational stats endpoint, and the
// ping/version utilities. NewApp assembles them onto a fiber application
// wired with request-ID propagation, access logging, and trace-context
// extraction, so every handler can resolve its logger, tracer, and metrics
// factory from the request context.
//
// Errors leave through one door: RenderError translates domain failures into
// the stable ErrorResponse contract, with provider-exhaustion failures
// rendered as 502 responses carrying each provider's terminal failure kind.
package http
