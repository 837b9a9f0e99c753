package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNilProvider is returned when registering a nil provider.
	ErrNilProvider = errors.New("provider is nil")
	// ErrEmptyProviderName is returned when a descriptor has no name.
	ErrEmptyProviderName = errors.New("provider name is empty")
	// ErrDuplicateProvider is returned when a name is registered twice.
	ErrDuplicateProvider = errors.New("provider already registered")
	// ErrInvalidTimeout is returned for a negative per-call timeout.
	ErrInvalidTimeout = errors.New("provider timeout must not be negative")
	// ErrInvalidConcurrency is returned for a negative in-flight cap.
	ErrInvalidConcurrency = errors.New("provider max concurrent must not be negative")
	// ErrProviderNotFound is returned by lookups of unregistered names.
	ErrProviderNotFound = errors.New("provider not found")
)

// Defaults applied by Register when a descriptor leaves them zero. The
// per-call timeout deliberately leaves room for at least one failover hop
// within the 5s overall deadline.
const (
	DefaultTimeout       = 2 * time.Second
	DefaultMaxConcurrent = 4
)

// Descriptor declares a provider's static dispatch parameters.
type Descriptor struct {
	// Name uniquely identifies the provider. Lower-case by convention.
	Name string

	// Priority orders candidates; lower is tried first.
	Priority int

	// Timeout bounds one call. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxConcurrent caps in-flight calls to this provider across a batch.
	// Zero means DefaultMaxConcurrent.
	MaxConcurrent int

	// RateLimit is the provider's declared calls-per-minute budget.
	// Informational; exported through the stats surface.
	RateLimit int
}

// Validate checks the descriptor for structural problems.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyProviderName
	}

	if d.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, d.Name)
	}

	if d.MaxConcurrent < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConcurrency, d.Name)
	}

	return nil
}

// withDefaults returns a copy with zero-valued tunables filled in.
func (d Descriptor) withDefaults() Descriptor {
	d.Name = strings.TrimSpace(d.Name)

	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}

	if d.MaxConcurrent == 0 {
		d.MaxConcurrent = DefaultMaxConcurrent
	}

	return d
}

// Registration binds a provider to its descriptor.
type Registration struct {
	Descriptor Descriptor
	Provider   Provider
}

// Registry is the startup-built set of available providers. Safe for
// concurrent use; registrations normally all happen before serving.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Registration),
	}
}

// Register adds a provider under the descriptor's name. The descriptor is
// validated and zero-valued tunables are defaulted. Duplicate names are
// rejected.
func (r *Registry) Register(descriptor Descriptor, p Provider) error {
	if p == nil {
		return ErrNilProvider
	}

	if err := descriptor.Validate(); err != nil {
		return err
	}

	descriptor = descriptor.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[descriptor.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, descriptor.Name)
	}

	r.entries[descriptor.Name] = Registration{Descriptor: descriptor, Provider: p}
	r.order = append(r.order, descriptor.Name)

	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.entries[name]
	if !exists {
		return Registration{}, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	return registration, nil
}

// Candidates returns all registrations sorted by priority ascending.
// Equal priorities keep registration order; callers apply their own
// tie-break on top.
func (r *Registry) Candidates() []Registration {
	r.mu.RLock()

	candidates := make([]Registration, 0, len(r.order))
	for _, name := range r.order {
		candidates = append(candidates, r.entries[name])
	}

	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Descriptor.Priority < candidates[j].Descriptor.Priority
	})

	return candidates
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)

	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
