// Package runtime provides panic recovery helpers for goroutines and
// handlers, with observability integration.
//
// The package offers three families of helpers:
//
//   - Recover* functions for use in defer statements, with policies for
//     continuing or crashing after a panic.
//   - SafeGo* functions that launch goroutines with recovery built in.
//   - HandlePanicValue for frameworks that recover panics themselves but
//     should still feed the observability pipeline.
//
// Recovered panics are logged with their stack trace, recorded as span
// events on any active span, and counted by an optional metric initialized
// via InitPanicMetrics.
package runtime
