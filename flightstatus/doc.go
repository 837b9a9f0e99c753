// Package flightstatus provides shared plumbing for the flight-status access layer.
//
// The package includes context helpers, environment configuration utilities,
// observation identifiers, and the Launcher used to run background components
// (health monitor, cache sweeper) with a common lifecycle.
//
// Typical usage at request ingress:
//
//	ctx = flightstatus.ContextWithLogger(ctx, logger)
//	ctx = flightstatus.ContextWithTracer(ctx, tracer)
//	ctx = flightstatus.ContextWithHeaderID(ctx, requestID)
//
// The resolution pipeline itself lives in subpackages: provider, retry,
// circuitbreaker, health, cache, and failover.
package flightstatus
