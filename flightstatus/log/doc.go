// Package log defines the logging interface and typed logging fields used
// across the flight-status layer.
//
// Adapters (such as the zap package) implement Logger so orchestration and
// provider code can keep logging calls consistent across backends.
package log
