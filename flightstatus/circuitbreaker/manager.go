package circuitbreaker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
)

// Manager creates and tracks one circuit breaker per provider so all
// callers share the same failure state.
type Manager interface {
	// GetOrCreate returns the breaker for the given provider, creating it
	// with the manager's configuration on first use.
	GetOrCreate(name string) *Breaker

	// Execute runs fn under the provider's breaker. It returns ErrOpenState
	// without invoking fn when the breaker rejects the call. A fn error is
	// recorded as a failure unless ctx was cancelled, in which case the
	// permit is abandoned and provider health is left untouched.
	Execute(ctx context.Context, name string, fn func() error) error

	// State returns the provider's breaker state, or StateUnknown when no
	// breaker exists for the name.
	State(name string) State

	// Counts returns a snapshot of the provider's breaker statistics. A
	// missing breaker yields zero counts.
	Counts(name string) Counts

	// Reset returns the provider's breaker to closed with zeroed counters.
	// Resetting a missing breaker is a no-op.
	Reset(name string)

	// ForEach calls fn for every breaker. The snapshot is taken up front,
	// so breakers created during iteration are not visited.
	ForEach(fn func(name string, b *Breaker))

	// RegisterStateChangeListener subscribes to state transitions of all
	// breakers owned by the manager. Listeners run asynchronously.
	RegisterStateChangeListener(listener StateChangeListener)
}

// manager is the default Manager implementation. The manager lock is never
// held while calling into a breaker, so breaker callbacks may safely read
// manager state.
type manager struct {
	config Config
	logger log.Logger

	mu        sync.RWMutex
	breakers  map[string]*Breaker
	listeners []StateChangeListener
}

// NewManager creates a Manager that builds every breaker from config. A nil
// logger silences transition logging.
//
//nolint:ireturn
func NewManager(config Config, logger log.Logger) (Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &manager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}, nil
}

func (m *manager) GetOrCreate(name string) *Breaker {
	name = strings.TrimSpace(name)

	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()

	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}

	b = &Breaker{
		name:          name,
		config:        m.config,
		state:         StateClosed,
		now:           time.Now,
		onStateChange: m.handleStateChange,
	}
	m.breakers[name] = b

	m.logger.Log(context.Background(), log.LevelDebug, "circuit breaker created",
		log.String("provider", name),
		log.Int64("failure_threshold", int64(m.config.FailureThreshold)),
		log.Duration("open_duration", m.config.OpenDuration),
	)

	return b
}

func (m *manager) Execute(ctx context.Context, name string, fn func() error) error {
	permit, err := m.GetOrCreate(name).Acquire()
	if err != nil {
		return err
	}

	if err := fn(); err != nil {
		if ctx.Err() != nil {
			permit.Abandon()
		} else {
			permit.Failure()
		}

		return err
	}

	permit.Success()

	return nil
}

func (m *manager) State(name string) State {
	b := m.lookup(name)
	if b == nil {
		return StateUnknown
	}

	return b.State()
}

func (m *manager) Counts(name string) Counts {
	b := m.lookup(name)
	if b == nil {
		return Counts{}
	}

	return b.Counts()
}

func (m *manager) Reset(name string) {
	b := m.lookup(name)
	if b == nil {
		return
	}

	b.Reset()

	m.logger.Log(context.Background(), log.LevelInfo, "circuit breaker reset",
		log.String("provider", name),
	)
}

func (m *manager) ForEach(fn func(name string, b *Breaker)) {
	m.mu.RLock()
	snapshot := make([]*Breaker, 0, len(m.breakers))

	for _, b := range m.breakers {
		snapshot = append(snapshot, b)
	}
	m.mu.RUnlock()

	for _, b := range snapshot {
		fn(b.Name(), b)
	}
}

func (m *manager) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, listener)
}

// lookup returns the breaker for name without creating one.
func (m *manager) lookup(name string) *Breaker {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.breakers[strings.TrimSpace(name)]
}

// handleStateChange runs with the transitioning breaker's lock held, so it
// only snapshots listeners and hands the rest to goroutines.
func (m *manager) handleStateChange(name string, from, to State) {
	m.logger.Log(context.Background(), log.LevelWarn, "circuit breaker state changed",
		log.String("provider", name),
		log.String("from", from.String()),
		log.String("to", to.String()),
	)

	m.mu.RLock()
	listeners := make([]StateChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		go func(l StateChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Log(context.Background(), log.LevelError, "circuit breaker listener panicked",
						log.String("provider", name),
						log.Any("panic", r),
					)
				}
			}()

			l.OnStateChange(name, from, to)
		}(listener)
	}
}
