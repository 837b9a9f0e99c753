package log

import "context"

// NopLogger discards every log event. Constructors across the library
// install it whenever the caller leaves their Logger nil, so components
// never have to nil-check before logging.
type NopLogger struct{}

var _ Logger = (*NopLogger)(nil)

// NewNop returns a logger that discards everything.
//
//nolint:ireturn
func NewNop() Logger {
	return &NopLogger{}
}

// Log discards the event.
func (l *NopLogger) Log(_ context.Context, _ Level, _ string, _ ...Field) {}

// With discards the fields and returns the receiver.
//
//nolint:ireturn
func (l *NopLogger) With(_ ...Field) Logger {
	return l
}

// WithGroup discards the group name and returns the receiver.
//
//nolint:ireturn
func (l *NopLogger) WithGroup(_ string) Logger {
	return l
}

// Enabled reports false for every level, so callers can skip building
// fields for entries that will be dropped anyway.
func (l *NopLogger) Enabled(_ Level) bool {
	return false
}

// Sync has nothing to flush.
func (l *NopLogger) Sync(_ context.Context) error { return nil }
