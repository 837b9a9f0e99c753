package provider

import (
	"context"
	"time"
)

// Provider is one external flight-status data source.
//
// FetchStatus performs exactly one network round trip and returns either a
// normalized record or a *Failure. The per-call timeout from the Descriptor
// is applied by the caller through the context deadline; providers must
// honor ctx and must not retry internally.
//
// Probe is a cheap reachability-and-auth check used by the health monitor.
// It does not need to be a real status lookup.
type Provider interface {
	FetchStatus(ctx context.Context, flightID string, departureDate time.Time) (*FlightStatusRecord, error)
	Probe(ctx context.Context) error
}
