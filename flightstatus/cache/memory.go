package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/runtime"
)

// defaultSweepInterval is used when StartSweeper is called with a
// non-positive interval.
const defaultSweepInterval = time.Minute

// MemoryConfig configures a process-local store.
type MemoryConfig struct {
	// TTL is the freshness window. Zero or negative means DefaultTTL.
	TTL time.Duration

	// RetentionFactor scales TTL into the sweep retention window. Zero or
	// negative means DefaultRetentionFactor.
	RetentionFactor int

	// Logger is optional. A nil logger disables logging.
	Logger log.Logger
}

// MemoryStore is a process-local Store backed by a map. An optional
// background sweeper removes entries older than the retention window;
// sweeping is cleanup only and never affects what Get returns.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	ttl       time.Duration
	retention time.Duration
	logger    log.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	staleHits atomic.Uint64

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepWG   sync.WaitGroup

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	factor := cfg.RetentionFactor
	if factor <= 0 {
		factor = DefaultRetentionFactor
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &MemoryStore{
		entries:   make(map[string]*Entry),
		ttl:       ttl,
		retention: time.Duration(factor) * ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the entry for key, or ErrMiss. The returned entry never
// aliases the cached one, so callers may tag the record freely.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key.String()]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)

		return nil, ErrMiss
	}

	s.hits.Add(1)

	if !entry.Fresh(s.now(), s.ttl) {
		s.staleHits.Add(1)
	}

	return &Entry{Record: entry.Record.Clone(), StoredAt: entry.StoredAt}, nil
}

// Put stores record under key, replacing any previous entry.
func (s *MemoryStore) Put(_ context.Context, key Key, record *provider.FlightStatusRecord) error {
	if record == nil {
		return ErrNilRecord
	}

	entry := &Entry{Record: record.Clone(), StoredAt: s.now()}

	s.mu.Lock()
	s.entries[key.String()] = entry
	s.mu.Unlock()

	return nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()

	return nil
}

// Stats reports the entry count and traffic counters.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	entries := len(s.entries)
	s.mu.RUnlock()

	return Stats{
		Backend:   "memory",
		Entries:   entries,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		StaleHits: s.staleHits.Load(),
	}, nil
}

// Close stops the sweeper and drops all entries.
func (s *MemoryStore) Close() error {
	s.StopSweeper()

	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()

	return nil
}

// StartSweeper begins periodically removing entries older than the
// retention window. Starting an already-running sweeper is a no-op.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.sweepStop != nil {
		return
	}

	stop := make(chan struct{})
	s.sweepStop = stop

	s.sweepWG.Add(1)

	runtime.SafeGo(s.logger, "cache.sweeper", runtime.KeepRunning, func() {
		defer s.sweepWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-stop:
				return
			}
		}
	})
}

// StopSweeper halts the sweeper and waits for it to exit. Stopping a
// sweeper that never started is a no-op.
func (s *MemoryStore) StopSweeper() {
	s.sweepMu.Lock()

	if s.sweepStop == nil {
		s.sweepMu.Unlock()

		return
	}

	close(s.sweepStop)
	s.sweepStop = nil
	s.sweepMu.Unlock()

	s.sweepWG.Wait()
}

func (s *MemoryStore) sweep() {
	cutoff := s.now().Add(-s.retention)
	removed := 0

	s.mu.Lock()

	for key, entry := range s.entries {
		if entry.StoredAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}

	s.mu.Unlock()

	if removed > 0 {
		s.logger.Log(context.Background(), log.LevelDebug, "cache sweep removed entries",
			log.Int("removed", removed),
		)
	}
}
