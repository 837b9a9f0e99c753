package flightaware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	constant "github.com/LerianStudio/lib-flightstatus/flightstatus/constants"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// Name is the provider name reported in records and failures. Register the
// provider under this name unless several FlightAware accounts coexist.
const Name = "flightaware"

// DefaultBaseURL is the production AeroAPI endpoint.
const DefaultBaseURL = "https://aeroapi.flightaware.com/aeroapi"

const (
	// confidence reflects AeroAPI's data quality.
	confidence = 0.95

	// delayThreshold is the departure delay beyond which a flight counts
	// as DELAYED rather than merely late off the gate.
	delayThreshold = 15 * time.Minute

	// defaultRetryAfter applies when a 429 carries no usable Retry-After.
	defaultRetryAfter = 300 * time.Second

	// probeAirport is the cheap lookup used to validate reachability and
	// the API key without spending a flight query.
	probeAirport = "LAX"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

var (
	// ErrMissingAPIKey is returned when the provider is built without a key.
	ErrMissingAPIKey = errors.New("flightaware: api key is required")

	// ErrInvalidBaseURL is returned for an unparsable base URL.
	ErrInvalidBaseURL = errors.New("flightaware: invalid base url")
)

// Config wires a FlightAware provider.
type Config struct {
	// APIKey is the AeroAPI key, sent as the x-apikey header. Required.
	APIKey string

	// BaseURL overrides DefaultBaseURL, e.g. to point at a sandbox.
	BaseURL string

	// HTTPClient overrides the transport. Nil means a client without its
	// own timeout: call deadlines come from the caller's context.
	HTTPClient *http.Client
}

// Provider calls the FlightAware AeroAPI. Safe for concurrent use.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	calls atomic.Uint64
}

var _ provider.Provider = (*Provider)(nil)

// New validates cfg and returns a ready provider.
func New(cfg Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
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
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

// Calls returns how many fetch round trips were attempted.
func (p *Provider) Calls() uint64 {
	return p.calls.Load()
}

// flightsResponse mirrors the subset of GET /flights/{ident} this provider
// reads.
type flightsResponse struct {
	Flights []flightPayload `json:"flights"`
}

type flightPayload struct {
	Cancelled      bool       `json:"cancelled"`
	Diverted       bool       `json:"diverted"`
	ScheduledOut   string     `json:"scheduled_out"`
	ActualOut      string     `json:"actual_out"`
	GateOrigin     string     `json:"gate_origin"`
	TerminalOrigin string     `json:"terminal_origin"`
	Origin         airportRef `json:"origin"`
	Destination    airportRef `json:"destination"`
}

type airportRef struct {
	CodeIATA string `json:"code_iata"`
}

// FetchStatus performs one AeroAPI round trip for flightID on the requested
// departure day.
func (p *Provider) FetchStatus(ctx context.Context, flightID string, departureDate time.Time) (*provider.FlightStatusRecord, error) {
	p.calls.Add(1)

	flight := strings.ToUpper(strings.TrimSpace(flightID))
	day := departureDate.UTC().Truncate(24 * time.Hour)

	query := url.Values{}
	query.Set("start", day.Format("2006-01-02"))
	query.Set("end", day.AddDate(0, 0, 1).Format("2006-01-02"))

	endpoint := p.baseURL + "/flights/" + url.PathEscape(flight) + "?" + query.Encode()

	body, failure := p.get(ctx, endpoint)
	if failure != nil {
		return nil, failure
	}

	var payload flightsResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, provider.NewFailure(Name, provider.FailureMalformed, err)
	}

	target, scheduled, ok := closestFlight(payload.Flights, day)
	if !ok {
		return nil, provider.NewFailure(Name, provider.FailureNotFound,
			fmt.Errorf("no flights returned for %s on %s", flight, day.Format("2006-01-02")))
	}

	return p.normalize(flight, day, target, scheduled), nil
}

// Probe checks reachability and key validity with a cheap airport lookup.
func (p *Provider) Probe(ctx context.Context) error {
	_, failure := p.get(ctx, p.baseURL+"/airports/"+probeAirport)
	if failure != nil {
		return failure
	}

	return nil
}

// get performs one authenticated GET and returns the body, or the
// normalized failure.
func (p *Provider) get(ctx context.Context, endpoint string) ([]byte, *provider.Failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, provider.NewFailure(Name, provider.FailureMalformed, err)
	}

	req.Header.Set("x-apikey", p.apiKey)
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

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, provider.NewRateLimited(Name, retryAfter(resp.Header),
			fmt.Errorf("flightaware: rate limit exceeded"))
	}

	kind := provider.ClassifyHTTPStatus(resp.StatusCode)

	return nil, provider.NewFailure(Name, kind,
		fmt.Errorf("flightaware: unexpected status %d", resp.StatusCode))
}

// retryAfter reads the declared wait from a 429, falling back to the
// documented default.
func retryAfter(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get(constant.HeaderRetryAfter))
	if raw == "" {
		return defaultRetryAfter
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}

	return time.Duration(seconds) * time.Second
}

// closestFlight picks the entry whose scheduled departure is nearest the
// requested day. Entries without a parsable scheduled departure are skipped.
func closestFlight(flights []flightPayload, day time.Time) (flightPayload, time.Time, bool) {
	var (
		best      flightPayload
		bestTime  time.Time
		bestDelta time.Duration
		found     bool
	)

	for _, candidate := range flights {
		scheduled, err := time.Parse(time.RFC3339, candidate.ScheduledOut)
		if err != nil {
			continue
		}

		delta := scheduled.Sub(day)
		if delta < 0 {
			delta = -delta
		}

		if !found || delta < bestDelta {
			best = candidate
			bestTime = scheduled.UTC()
			bestDelta = delta
			found = true
		}
	}

	return best, bestTime, found
}

// normalize maps one AeroAPI flight onto the shared record shape. Status
// precedence is cancelled, then delayed beyond the threshold, then
// diverted.
func (p *Provider) normalize(flight string, day time.Time, payload flightPayload, scheduled time.Time) *provider.FlightStatusRecord {
	record := &provider.FlightStatusRecord{
		FlightID:           flight,
		DepartureDate:      day,
		Status:             provider.StatusOnTime,
		DepartureAirport:   payload.Origin.CodeIATA,
		ArrivalAirport:     payload.Destination.CodeIATA,
		ScheduledDeparture: scheduled,
		Gate:               payload.GateOrigin,
		Terminal:           payload.TerminalOrigin,
		Source:             Name,
		Confidence:         confidence,
		ObservedAt:         time.Now().UTC(),
	}

	if id, err := flightstatus.GenerateUUIDv7(); err == nil {
		record.ObservationID = id
	}

	var delay time.Duration

	if actual, err := time.Parse(time.RFC3339, payload.ActualOut); err == nil {
		record.ActualDeparture = actual.UTC()
		delay = actual.Sub(scheduled)
		record.DelayMinutes = int(delay / time.Minute)
		record.DelayKnown = true
	}

	switch {
	case payload.Cancelled:
		record.Status = provider.StatusCancelled
	case delay > delayThreshold:
		record.Status = provider.StatusDelayed
	case payload.Diverted:
		record.Status = provider.StatusDiverted
	}

	return record
}
