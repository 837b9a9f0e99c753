package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/circuitbreaker"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/runtime"
)

var (
	// ErrInvalidInterval indicates that the probe interval must be positive.
	ErrInvalidInterval = errors.New("health: probe interval must be positive")

	// ErrInvalidProbeTimeout indicates that the probe timeout must be positive.
	ErrInvalidProbeTimeout = errors.New("health: probe timeout must be positive")

	// ErrNilRegistry indicates that the monitor needs a provider registry.
	ErrNilRegistry = errors.New("health: provider registry is nil")

	// ErrNilBreakers indicates that the monitor needs a breaker manager.
	ErrNilBreakers = errors.New("health: circuit breaker manager is nil")

	// ErrNilTracker indicates that the monitor needs a tracker.
	ErrNilTracker = errors.New("health: tracker is nil")
)

// checkNowCapacity bounds queued immediate checks so a burst of breaker
// openings cannot block the callers scheduling them.
const checkNowCapacity = 10

// MonitorConfig carries the monitor's dependencies and tunables.
type MonitorConfig struct {
	Registry     *provider.Registry
	Breakers     circuitbreaker.Manager
	Tracker      *Tracker
	Interval     time.Duration
	ProbeTimeout time.Duration

	// Logger is optional; nil silences the monitor.
	Logger log.Logger
}

// Monitor probes every registered provider on an interval.
//
// Probe outcomes feed the Tracker. A successful probe against a breaker
// whose open window has expired resets the breaker, so recovered providers
// rejoin the rotation without a live request spending the half-open trial.
//
// The monitor also implements circuitbreaker.StateChangeListener: register
// it on the breaker manager and a breaker opening schedules an immediate
// probe of that provider.
type Monitor struct {
	registry *provider.Registry
	breakers circuitbreaker.Manager
	tracker  *Tracker
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger

	stopChan  chan struct{}
	checkNow  chan string
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor validates cfg and creates a stopped monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}

	if cfg.Breakers == nil {
		return nil, ErrNilBreakers
	}

	if cfg.Tracker == nil {
		return nil, ErrNilTracker
	}

	if cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}

	if cfg.ProbeTimeout <= 0 {
		return nil, ErrInvalidProbeTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Monitor{
		registry: cfg.Registry,
		breakers: cfg.Breakers,
		tracker:  cfg.Tracker,
		interval: cfg.Interval,
		timeout:  cfg.ProbeTimeout,
		logger:   logger,
		stopChan: make(chan struct{}),
		checkNow: make(chan string, checkNowCapacity),
	}, nil
}

// Start launches the probe loop. Starting twice is a no-op.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)

		runtime.SafeGo(m.logger, "health.monitor", runtime.KeepRunning, m.loop)

		m.logger.Log(context.Background(), log.LevelInfo, "health monitor started",
			log.Duration("interval", m.interval),
			log.Duration("probe_timeout", m.timeout),
		)
	})
}

// Stop halts the probe loop and waits for it to exit. Stopping twice, or
// stopping a monitor that never started, is a no-op.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})

	m.wg.Wait()

	m.logger.Log(context.Background(), log.LevelInfo, "health monitor stopped")
}

// CheckNow schedules an immediate probe of one provider. It reports false
// when the queue is full; the provider is still probed on the next tick.
func (m *Monitor) CheckNow(name string) bool {
	select {
	case m.checkNow <- name:
		return true
	default:
		m.logger.Log(context.Background(), log.LevelWarn, "immediate check queue full",
			log.String("provider", name),
		)

		return false
	}
}

// OnStateChange implements circuitbreaker.StateChangeListener. A breaker
// opening schedules an immediate probe of the provider.
func (m *Monitor) OnStateChange(name string, _, to circuitbreaker.State) {
	if to == circuitbreaker.StateOpen {
		m.CheckNow(name)
	}
}

// Entering the select immediately keeps the monitor responsive to CheckNow
// from the moment it starts.
func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probeAll()
		case name := <-m.checkNow:
			m.probeOne(name)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) probeAll() {
	for _, reg := range m.registry.Candidates() {
		select {
		case <-m.stopChan:
			return
		default:
		}

		m.probe(reg)
	}
}

func (m *Monitor) probeOne(name string) {
	reg, err := m.registry.Lookup(name)
	if err != nil {
		m.logger.Log(context.Background(), log.LevelWarn, "immediate check for unknown provider",
			log.String("provider", name),
		)

		return
	}

	m.probe(reg)
}

func (m *Monitor) probe(reg provider.Registration) {
	name := reg.Descriptor.Name

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	start := time.Now()
	err := reg.Provider.Probe(ctx)

	cancel()

	latency := time.Since(start)

	m.tracker.RecordProbe(name, err == nil, latency)

	if err != nil {
		m.logger.Log(context.Background(), log.LevelWarn, "provider probe failed",
			log.String("provider", name),
			log.Err(err),
		)

		return
	}

	if b := m.breakers.GetOrCreate(name); b.OpenExpired() {
		m.logger.Log(context.Background(), log.LevelInfo, "provider recovered, resetting circuit breaker",
			log.String("provider", name),
		)

		b.Reset()
	}
}
