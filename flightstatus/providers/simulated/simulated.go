package simulated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/backoff"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// DefaultName is the provider name used when none is configured.
const DefaultName = "simulated"

// defaultConfidence is the confidence reported by generated records.
const defaultConfidence = 0.92

// departureHour places every simulated departure at a fixed UTC hour so
// generated records are reproducible across runs.
const departureHour = 9

// ErrScriptedFailure is the cause carried by scripted failures.
var ErrScriptedFailure = errors.New("simulated: scripted failure")

// Scenario describes the canned outcome for one flight number.
type Scenario struct {
	Status       provider.Status
	DelayMinutes int

	DepartureAirport string
	ArrivalAirport   string
	Gate             string
	Terminal         string

	// Confidence overrides the default record confidence when positive.
	Confidence float64

	// Fail makes every fetch of this flight fail with FailKind.
	Fail     bool
	FailKind provider.FailureKind
}

// DefaultScenarios returns the canned flight table: AA123 on time, UA456
// delayed 45 minutes, DL789 cancelled, SW111 diverted, and AA999 always
// erroring. Flights outside the table resolve on time.
func DefaultScenarios() map[string]Scenario {
	return map[string]Scenario{
		"AA123": {Status: provider.StatusOnTime, DepartureAirport: "JFK", ArrivalAirport: "LAX", Gate: "B23", Terminal: "4"},
		"UA456": {Status: provider.StatusDelayed, DelayMinutes: 45, DepartureAirport: "ORD", ArrivalAirport: "SFO", Gate: "C7", Terminal: "1"},
		"DL789": {Status: provider.StatusCancelled, DepartureAirport: "ATL", ArrivalAirport: "MIA"},
		"SW111": {Status: provider.StatusDiverted, DepartureAirport: "DAL", ArrivalAirport: "HOU", Gate: "A1"},
		"AA999": {Fail: true, FailKind: provider.FailureUnavailable},
	}
}

// Config tunes a simulated provider. The zero value is usable.
type Config struct {
	// Name identifies the provider in records and failures. Empty means
	// DefaultName.
	Name string

	// Latency is the artificial per-fetch delay, interrupted by the
	// caller's context.
	Latency time.Duration

	// ProbeLatency is the artificial per-probe delay.
	ProbeLatency time.Duration

	// RateLimitEvery makes every Nth fetch fail as rate-limited when
	// positive. The declared retry-after is RateLimitRetryAfter.
	RateLimitEvery      int
	RateLimitRetryAfter time.Duration

	// Scenarios seeds the flight table. Nil means DefaultScenarios.
	Scenarios map[string]Scenario
}

// Provider is a scripted in-memory flight-status source.
//
// All methods are safe for concurrent use. Fetches honor the caller's
// context during simulated latency, never retry, and count their own calls.
type Provider struct {
	name                string
	latency             time.Duration
	probeLatency        time.Duration
	rateLimitEvery      int
	rateLimitRetryAfter time.Duration

	mu        sync.Mutex
	scenarios map[string]Scenario

	// failNext > 0 fails that many upcoming fetches; failAlways keeps
	// failing until Recover. Both fail with failKind.
	failNext   int
	failAlways bool
	failKind   provider.FailureKind

	probeErr error

	calls      atomic.Uint64
	probeCalls atomic.Uint64

	now func() time.Time
}

var _ provider.Provider = (*Provider)(nil)

// New creates a simulated provider from cfg.
func New(cfg Config) *Provider {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultName
	}

	scenarios := cfg.Scenarios
	if scenarios == nil {
		scenarios = DefaultScenarios()
	}

	copied := make(map[string]Scenario, len(scenarios))
	for flight, scenario := range scenarios {
		copied[strings.ToUpper(strings.TrimSpace(flight))] = scenario
	}

	retryAfter := cfg.RateLimitRetryAfter
	if retryAfter <= 0 {
		retryAfter = time.Second
	}

	return &Provider{
		name:                name,
		latency:             cfg.Latency,
		probeLatency:        cfg.ProbeLatency,
		rateLimitEvery:      cfg.RateLimitEvery,
		rateLimitRetryAfter: retryAfter,
		scenarios:           copied,
		now:                 time.Now,
	}
}

// FetchStatus serves the scenario for flightID after the configured latency.
// Scripted failures and rate-limit simulation take precedence over the
// scenario table.
func (p *Provider) FetchStatus(ctx context.Context, flightID string, departureDate time.Time) (*provider.FlightStatusRecord, error) {
	call := p.calls.Add(1)

	if p.latency > 0 {
		if err := backoff.SleepWithContext(ctx, p.latency); err != nil {
			return nil, provider.FromContextError(p.name, err)
		}
	}

	if kind, scripted := p.takeScriptedFailure(); scripted {
		if kind == provider.FailureRateLimited {
			return nil, provider.NewRateLimited(p.name, p.rateLimitRetryAfter, ErrScriptedFailure)
		}

		return nil, provider.NewFailure(p.name, kind, ErrScriptedFailure)
	}

	if p.rateLimitEvery > 0 && call%uint64(p.rateLimitEvery) == 0 {
		return nil, provider.NewRateLimited(p.name, p.rateLimitRetryAfter,
			fmt.Errorf("simulated: call %d rate-limited", call))
	}

	flight := strings.ToUpper(strings.TrimSpace(flightID))

	scenario, known := p.scenario(flight)
	if !known {
		scenario = Scenario{Status: provider.StatusOnTime}
	}

	if scenario.Fail {
		kind := scenario.FailKind
		if kind == "" {
			kind = provider.FailureUnavailable
		}

		if kind == provider.FailureRateLimited {
			return nil, provider.NewRateLimited(p.name, p.rateLimitRetryAfter,
				fmt.Errorf("simulated: flight %s always fails", flight))
		}

		return nil, provider.NewFailure(p.name, kind,
			fmt.Errorf("simulated: flight %s always fails", flight))
	}

	return p.buildRecord(flight, departureDate, scenario), nil
}

// Probe reports the configured probe outcome after the probe latency.
func (p *Provider) Probe(ctx context.Context) error {
	p.probeCalls.Add(1)

	if p.probeLatency > 0 {
		if err := backoff.SleepWithContext(ctx, p.probeLatency); err != nil {
			return provider.FromContextError(p.name, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.probeErr
}

// Script sets or replaces the scenario for one flight number.
func (p *Provider) Script(flightID string, scenario Scenario) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scenarios[strings.ToUpper(strings.TrimSpace(flightID))] = scenario
}

// FailNext makes the next n fetches fail with the given kind, then resumes
// normal service.
func (p *Provider) FailNext(n int, kind provider.FailureKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failNext = n
	p.failKind = kind
}

// FailAlways makes every fetch fail with the given kind until Recover.
func (p *Provider) FailAlways(kind provider.FailureKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failAlways = true
	p.failKind = kind
}

// Recover clears all scripted failures.
func (p *Provider) Recover() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failNext = 0
	p.failAlways = false
	p.failKind = ""
}

// SetProbeError makes subsequent probes fail with err. Nil restores
// healthy probes.
func (p *Provider) SetProbeError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probeErr = err
}

// Calls returns how many fetches were attempted, failures included.
func (p *Provider) Calls() uint64 {
	return p.calls.Load()
}

// ProbeCalls returns how many probes were attempted.
func (p *Provider) ProbeCalls() uint64 {
	return p.probeCalls.Load()
}

func (p *Provider) scenario(flight string) (Scenario, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scenario, ok := p.scenarios[flight]

	return scenario, ok
}

func (p *Provider) takeScriptedFailure() (provider.FailureKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAlways {
		return p.failKind, true
	}

	if p.failNext > 0 {
		p.failNext--

		return p.failKind, true
	}

	return "", false
}

// buildRecord derives a reproducible record: departures at a fixed UTC hour
// of the requested day, delays applied from the scenario.
func (p *Provider) buildRecord(flight string, departureDate time.Time, scenario Scenario) *provider.FlightStatusRecord {
	day := departureDate.UTC().Truncate(24 * time.Hour)
	scheduled := day.Add(departureHour * time.Hour)

	confidence := scenario.Confidence
	if confidence <= 0 {
		confidence = defaultConfidence
	}

	record := &provider.FlightStatusRecord{
		FlightID:           flight,
		DepartureDate:      day,
		Status:             scenario.Status,
		DepartureAirport:   scenario.DepartureAirport,
		ArrivalAirport:     scenario.ArrivalAirport,
		ScheduledDeparture: scheduled,
		Gate:               scenario.Gate,
		Terminal:           scenario.Terminal,
		Source:             p.name,
		Confidence:         confidence,
		ObservedAt:         p.now().UTC(),
	}

	if id, err := flightstatus.GenerateUUIDv7(); err == nil {
		record.ObservationID = id
	}

	if scenario.Status == provider.StatusDelayed || scenario.DelayMinutes > 0 {
		record.DelayMinutes = scenario.DelayMinutes
		record.DelayKnown = true
		record.ActualDeparture = scheduled.Add(time.Duration(scenario.DelayMinutes) * time.Minute)
	}

	if scenario.Status == provider.StatusOnTime {
		record.DelayKnown = true
		record.ActualDeparture = scheduled
	}

	return record
}
