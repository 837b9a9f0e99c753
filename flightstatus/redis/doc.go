// Package redis provides a managed Redis/Valkey client for the
// flight-status cache backend.
//
// New validates the configuration, connects with a ping check, and returns
// a client that reconnects on demand with rate-limited backoff so a dead
// server is never hammered. Standalone, Sentinel, and Cluster topologies
// are supported through one configuration surface, with optional TLS and
// password auth. Connection failures and reconnect attempts are counted
// through the library's metrics factory when one is configured.
package redis
