package constant

// TelemetrySDKName identifies this library in OTEL telemetry resource attributes.
const TelemetrySDKName = "lib-flightstatus/opentelemetry"

// MaxMetricLabelLength is the maximum length for metric labels to prevent
// cardinality explosion.
const MaxMetricLabelLength = 64

// Telemetry attribute key prefixes.
const (
	// AttrPrefixPanic is the prefix for panic event attributes.
	AttrPrefixPanic = "panic."
	// AttrPrefixFlight is the prefix for flight resolution attributes.
	AttrPrefixFlight = "flight."
)

// Telemetry attribute keys for database connectors.
const (
	// AttrDBSystem is the OTEL semantic convention attribute key for the database system name.
	AttrDBSystem = "db.system"
)

// Database system identifiers used as values for AttrDBSystem.
const (
	// DBSystemRedis is the OTEL semantic convention value for Redis.
	DBSystemRedis = "redis"
)

// SanitizeMetricLabel truncates a label value to MaxMetricLabelLength
// to prevent metric cardinality explosion in OTEL backends.
func SanitizeMetricLabel(value string) string {
	if len(value) > MaxMetricLabelLength {
		return value[:MaxMetricLabelLength]
	}

	return value
}
