// Package zap provides the production adapter bridging the flightstatus/log
// abstraction to go.uber.org/zap.
//
// Log events carry their OpenTelemetry trace and span ids when the context
// holds an active span, so provider calls and failover decisions correlate
// with distributed traces.
package zap
