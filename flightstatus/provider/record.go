package provider

import (
	"time"

	"github.com/google/uuid"
)

// Status is the normalized flight status every provider maps its native
// vocabulary onto.
type Status string

const (
	StatusOnTime    Status = "ON_TIME"
	StatusDelayed   Status = "DELAYED"
	StatusCancelled Status = "CANCELLED"
	StatusDiverted  Status = "DIVERTED"
	StatusUnknown   Status = "UNKNOWN"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusOnTime, StatusDelayed, StatusCancelled, StatusDiverted, StatusUnknown:
		return true
	default:
		return false
	}
}

// FlightStatusRecord is one normalized observation of a flight's status.
// Records are immutable once produced: a new observation is a new record,
// never an in-place mutation. Consumers that need to tag a record (e.g.
// stale fallback) must work on a Clone.
type FlightStatusRecord struct {
	// ObservationID uniquely identifies this observation. UUIDv7, so IDs
	// sort in observation order.
	ObservationID uuid.UUID `json:"observation_id"`

	FlightID      string    `json:"flight_id"`
	DepartureDate time.Time `json:"departure_date"`

	Status Status `json:"status"`

	// DelayMinutes is meaningful only when DelayKnown is true.
	DelayMinutes int  `json:"delay_minutes"`
	DelayKnown   bool `json:"delay_known"`

	DepartureAirport string `json:"departure_airport,omitempty"`
	ArrivalAirport   string `json:"arrival_airport,omitempty"`

	ScheduledDeparture time.Time `json:"scheduled_departure,omitempty"`
	ActualDeparture    time.Time `json:"actual_departure,omitempty"`

	Gate     string `json:"gate,omitempty"`
	Terminal string `json:"terminal,omitempty"`

	// Source is the name of the provider that produced this observation.
	Source string `json:"source"`

	// Confidence is the provider's self-declared data quality, in [0,1].
	Confidence float64 `json:"confidence"`

	ObservedAt time.Time `json:"observed_at"`

	// Stale is set only by the serving layer when the record is older than
	// the freshness TTL. Providers never set it.
	Stale bool `json:"stale,omitempty"`
}

// Clone returns an independent copy of the record.
func (r *FlightStatusRecord) Clone() *FlightStatusRecord {
	if r == nil {
		return nil
	}

	clone := *r

	return &clone
}
