// Package aviationstack implements the flight-status provider contract on
// top of the AviationStack REST API.
//
// One fetch issues a single GET /v1/flights query filtered by IATA
// designator and departure date and normalizes the matching entry into a
// FlightStatusRecord. AviationStack reports most failures inside a 200
// response envelope rather than through HTTP status codes, so the adapter
// classifies the documented error codes onto the shared failure taxonomy.
// Probes issue the smallest allowed authenticated query.
package aviationstack
