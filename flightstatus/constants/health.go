package constant

const (
	// HealthStatusAvailable is reported when every dependency is healthy.
	HealthStatusAvailable = "available"
	// HealthStatusDegraded is reported when at least one dependency is
	// unhealthy; the health endpoint answers 503 alongside it.
	HealthStatusDegraded = "degraded"
)
