// Package server owns the process lifecycle of the flight-status service:
// it launches the HTTP server and tears the service down in order on a
// signal, a closed shutdown channel, or a startup failure.
//
// Shutdown order is HTTP server first (stop accepting work), then the health
// monitor (stop probing), then the cache store, then the logger sync. Every
// step is idempotent; calling shutdown twice is safe.
package server
