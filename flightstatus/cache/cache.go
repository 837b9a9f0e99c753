package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

var (
	// ErrMiss is returned by Store.Get when no entry exists for the key.
	ErrMiss = errors.New("cache: miss")

	// ErrNilRecord is returned by Store.Put when the record is nil.
	ErrNilRecord = errors.New("cache: nil record")
)

const (
	// keyPrefix is the wire form every backend keys entries under.
	keyPrefix = "flight_status:v2:"

	// keyDateLayout renders the departure-day portion of a key.
	keyDateLayout = "20060102"
)

const (
	// DefaultTTL bounds how long a cached record counts as fresh.
	DefaultTTL = 2 * time.Minute

	// DefaultRetentionFactor scales the freshness TTL into the physical
	// retention window. Entries older than the TTL but younger than the
	// retention window are stale yet still readable.
	DefaultRetentionFactor = 10
)

// Key identifies one flight-day. Flight IDs are upper-cased and departure
// dates truncated to the UTC day, so every spelling of the same flight-day
// shares a single cache slot.
type Key struct {
	FlightID      string
	DepartureDate time.Time
}

// NewKey normalizes a flight ID and departure date into a canonical Key.
func NewKey(flightID string, departureDate time.Time) Key {
	return Key{
		FlightID:      strings.ToUpper(strings.TrimSpace(flightID)),
		DepartureDate: departureDate.UTC().Truncate(24 * time.Hour),
	}
}

// String returns the wire form, e.g. "flight_status:v2:AA123:20250301".
func (k Key) String() string {
	return keyPrefix + k.FlightID + ":" + k.DepartureDate.Format(keyDateLayout)
}

// Entry is one cached observation plus the instant it was stored.
type Entry struct {
	Record   *provider.FlightStatusRecord `json:"record"`
	StoredAt time.Time                    `json:"stored_at"`
}

// Fresh reports whether the entry is younger than ttl at the given instant.
// A nil entry, a nil record, or a non-positive ttl is never fresh.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil || e.Record == nil || ttl <= 0 {
		return false
	}

	return now.Sub(e.StoredAt) < ttl
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	if e == nil {
		return 0
	}

	return now.Sub(e.StoredAt)
}

// Stats is a point-in-time view of a store's contents and traffic.
type Stats struct {
	Backend   string `json:"backend"`
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	StaleHits uint64 `json:"stale_hits"`
}

// Store is a freshness-bounded cache for flight status records.
//
// Get returns ErrMiss when the key is absent. Entries past the freshness
// TTL are still returned; callers judge staleness via Entry.Fresh.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, key Key, record *provider.FlightStatusRecord) error
	Delete(ctx context.Context, key Key) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
