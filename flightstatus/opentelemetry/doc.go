// Package opentelemetry provides tracing and propagation helpers shared by
// the library's transport and storage layers.
//
// Span helpers record errors and events with nil-safe guards; the carrier
// utilities move W3C trace context between outgoing HTTP requests, incoming
// Fiber requests, and the request context. Metric instruments live in the
// nested metrics package.
package opentelemetry
