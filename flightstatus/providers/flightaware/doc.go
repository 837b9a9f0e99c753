// Package flightaware implements the flight-status provider contract on
// top of the FlightAware AeroAPI.
//
// One fetch issues a single GET /flights/{ident} request windowed to the
// requested departure day, picks the flight whose scheduled departure is
// closest to that day, and normalizes it into a FlightStatusRecord. HTTP
// and transport errors map onto the shared failure taxonomy; the provider
// itself never retries. Probes hit a cheap airport endpoint to validate
// reachability and the API key.
package flightaware
