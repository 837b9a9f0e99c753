// Package provider defines the contract every flight-status data source
// implements, the normalized record it produces, and the failure taxonomy
// callers reason about.
//
// A Provider performs exactly one network round trip per FetchStatus call
// and maps its native error surface onto one of the FailureKind values, so
// the failover layer can decide retryability without knowing provider
// internals. Providers never retry internally.
//
// The Registry binds providers to their Descriptor (priority, timeout,
// concurrency cap) at startup; adding a new data source means implementing
// Provider and registering a Descriptor, nothing else.
package provider
