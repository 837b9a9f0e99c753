package aviationstack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// Name is the provider name reported in records and failures.
const Name = "aviationstack"

// DefaultBaseURL is the production API endpoint. Free-plan keys are limited
// to plain HTTP; the API signals that with the https_access_restricted
// error code, which classifies as an auth failure.
const DefaultBaseURL = "https://api.aviationstack.com"

const (
	// confidence reflects that the data is aggregated rather than sourced
	// directly from the carrier.
	confidence = 0.90

	// delayThresholdMinutes is the reported departure delay beyond which a
	// flight counts as DELAYED rather than merely late off the gate.
	delayThresholdMinutes = 15

	// defaultRetryAfter applies to rate-limit responses; the API does not
	// declare a wait.
	defaultRetryAfter = time.Minute

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

var (
	// ErrMissingAccessKey is returned when the provider is built without a key.
	ErrMissingAccessKey = errors.New("aviationstack: access key is required")

	// ErrInvalidBaseURL is returned for an unparsable base URL.
	ErrInvalidBaseURL = errors.New("aviationstack: invalid base url")
)

// Config wires an AviationStack provider.
type Config struct {
	// AccessKey is the API key, sent as the access_key query parameter.
	// Required.
	AccessKey string

	// BaseURL overrides DefaultBaseURL, e.g. to downgrade to HTTP on the
	// free plan.
	BaseURL string

	// HTTPClient overrides the transport. Nil means a client without its
	// own timeout: call deadlines come from the caller's context.
	HTTPClient *http.Client
}

// Provider calls the AviationStack API. Safe for concurrent use.
type Provider struct {
	accessKey string
	baseURL   string
	client    *http.Client

	calls atomic.Uint64
}

var _ provider.Provider = (*Provider)(nil)

// New validates cfg and returns a ready provider.
func New(cfg Config) (*Provider, error) {
	accessKey := strings.TrimSpace(cfg.AccessKey)
	if accessKey == "" {
		return nil, ErrMissingAccessKey
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{
		accessKey: accessKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
	}, nil
}

// Calls returns how many fetch round trips were attempted.
func (p *Provider) Calls() uint64 {
	return p.calls.Load()
}

// envelope mirrors the subset of GET /v1/flights this provider reads. The
// API reports failures inside the envelope, alongside a 200 status.
type envelope struct {
	Error *apiError     `json:"error"`
	Data  []flightEntry `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flightEntry struct {
	FlightStatus string      `json:"flight_status"`
	Departure    leg         `json:"departure"`
	Arrival      leg         `json:"arrival"`
	Flight       flightIdent `json:"flight"`
}

type leg struct {
	IATA      string `json:"iata"`
	Terminal  string `json:"terminal"`
	Gate      string `json:"gate"`
	Delay     *int   `json:"delay"`
	Scheduled string `json:"scheduled"`
	Actual    string `json:"actual"`
}

type flightIdent struct {
	IATA string `json:"iata"`
}

// FetchStatus performs one API round trip for flightID on the requested
// departure day.
func (p *Provider) FetchStatus(ctx context.Context, flightID string, departureDate time.Time) (*provider.FlightStatusRecord, error) {
	p.calls.Add(1)

	flight := strings.ToUpper(strings.TrimSpace(flightID))
	day := departureDate.UTC().Truncate(24 * time.Hour)

	query := url.Values{}
	query.Set("access_key", p.accessKey)
	query.Set("flight_iata", flight)
	query.Set("flight_date", day.Format("2006-01-02"))

	payload, failure := p.query(ctx, query)
	if failure != nil {
		return nil, failure
	}

	entry, ok := matchFlight(payload.Data, flight)
	if !ok {
		return nil, provider.NewFailure(Name, provider.FailureNotFound,
			fmt.Errorf("no flights returned for %s on %s", flight, day.Format("2006-01-02")))
	}

	return normalize(flight, day, entry), nil
}

// Probe issues the smallest allowed query to validate reachability and the
// access key. An empty result set is a healthy answer.
func (p *Provider) Probe(ctx context.Context) error {
	query := url.Values{}
	query.Set("access_key", p.accessKey)
	query.Set("limit", "1")

	if _, failure := p.query(ctx, query); failure != nil {
		return failure
	}

	return nil
}

// query performs one authenticated GET against /v1/flights and decodes the
// envelope, folding transport, HTTP and in-envelope errors into failures.
func (p *Provider) query(ctx context.Context, query url.Values) (*envelope, *provider.Failure) {
	endpoint := p.baseURL + "/v1/flights?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, provider.NewFailure(Name, provider.FailureMalformed, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.FromContextError(Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, provider.FromContextError(Name, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, provider.NewRateLimited(Name, defaultRetryAfter,
			fmt.Errorf("aviationstack: rate limit exceeded"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewFailure(Name, provider.ClassifyHTTPStatus(resp.StatusCode),
			fmt.Errorf("aviationstack: unexpected status %d", resp.StatusCode))
	}

	var payload envelope
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, provider.NewFailure(Name, provider.FailureMalformed, err)
	}

	if payload.Error != nil {
		return nil, classifyAPIError(payload.Error)
	}

	return &payload, nil
}

// classifyAPIError maps the documented in-envelope error codes onto the
// failure taxonomy.
func classifyAPIError(apiErr *apiError) *provider.Failure {
	cause := fmt.Errorf("aviationstack: %s: %s", apiErr.Code, apiErr.Message)

	switch apiErr.Code {
	case "missing_access_key", "invalid_access_key", "inactive_user",
		"https_access_restricted", "function_access_restricted":
		return provider.NewFailure(Name, provider.FailureAuth, cause)
	case "usage_limit_reached", "rate_limit_reached":
		return provider.NewRateLimited(Name, defaultRetryAfter, cause)
	case "internal_error":
		return provider.NewFailure(Name, provider.FailureUnavailable, cause)
	case "404_not_found":
		return provider.NewFailure(Name, provider.FailureNotFound, cause)
	default:
		return provider.NewFailure(Name, provider.FailureMalformed, cause)
	}
}

// matchFlight prefers the entry whose IATA designator matches the request;
// aggregator responses can list codeshares alongside the operating flight.
func matchFlight(entries []flightEntry, flight string) (flightEntry, bool) {
	if len(entries) == 0 {
		return flightEntry{}, false
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.Flight.IATA, flight) {
			return entry, true
		}
	}

	return entries[0], true
}

// normalize maps one aggregator entry onto the shared record shape. The API
// reports the departure delay directly in minutes; a reported delay beyond
// the threshold upgrades an otherwise on-time status.
func normalize(flight string, day time.Time, entry flightEntry) *provider.FlightStatusRecord {
	record := &provider.FlightStatusRecord{
		FlightID:         flight,
		DepartureDate:    day,
		Status:           mapStatus(entry.FlightStatus),
		DepartureAirport: entry.Departure.IATA,
		ArrivalAirport:   entry.Arrival.IATA,
		Gate:             entry.Departure.Gate,
		Terminal:         entry.Departure.Terminal,
		Source:           Name,
		Confidence:       confidence,
		ObservedAt:       time.Now().UTC(),
	}

	if id, err := flightstatus.GenerateUUIDv7(); err == nil {
		record.ObservationID = id
	}

	if scheduled, err := time.Parse(time.RFC3339, entry.Departure.Scheduled); err == nil {
		record.ScheduledDeparture = scheduled.UTC()
	}

	if actual, err := time.Parse(time.RFC3339, entry.Departure.Actual); err == nil {
		record.ActualDeparture = actual.UTC()
	}

	if entry.Departure.Delay != nil {
		record.DelayMinutes = *entry.Departure.Delay
		record.DelayKnown = true

		if record.Status == provider.StatusOnTime && record.DelayMinutes > delayThresholdMinutes {
			record.Status = provider.StatusDelayed
		}
	}

	return record
}

// mapStatus translates flight_status strings. Unrecognized statuses,
// including "incident", degrade to UNKNOWN rather than guessing.
func mapStatus(status string) provider.Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "scheduled", "active", "landed":
		return provider.StatusOnTime
	case "cancelled":
		return provider.StatusCancelled
	case "diverted":
		return provider.StatusDiverted
	default:
		return provider.StatusUnknown
	}
}
