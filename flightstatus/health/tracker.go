package health

import (
	"sort"
	"sync"
	"time"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// EWMA smoothing: each new sample carries a tenth of the weight, matching
// the smoothing the latency average has always used.
const (
	historyWeight = 0.9
	sampleWeight  = 0.1
)

// Snapshot is a point-in-time copy of one provider's health signals.
type Snapshot struct {
	Provider                 string        `json:"provider"`
	Successes                uint64        `json:"successes"`
	Failures                 uint64        `json:"failures"`
	RateLimitHits            uint64        `json:"rate_limit_hits"`
	Score                    float64       `json:"score"`
	AvgLatency               time.Duration `json:"avg_latency_ns"`
	LastProbeAt              time.Time     `json:"last_probe_at,omitempty"`
	LastProbeOK              bool          `json:"last_probe_ok"`
	ConsecutiveProbeFailures uint64        `json:"consecutive_probe_failures"`
}

// entry is one provider's live health ledger.
type entry struct {
	mu sync.Mutex

	successes     uint64
	failures      uint64
	rateLimitHits uint64

	score        float64
	avgLatency   time.Duration
	latencyKnown bool

	lastProbeAt              time.Time
	lastProbeOK              bool
	consecutiveProbeFailures uint64
}

func newEntry() *entry {
	return &entry{score: 1.0}
}

// observeLatencyLocked folds one latency sample into the smoothed average.
// Callers must hold e.mu.
func (e *entry) observeLatencyLocked(latency time.Duration) {
	if !e.latencyKnown {
		e.avgLatency = latency
		e.latencyKnown = true

		return
	}

	e.avgLatency = time.Duration(historyWeight*float64(e.avgLatency) + sampleWeight*float64(latency))
}

// Tracker keeps per-provider health entries, created lazily on first use
// and living for the process lifetime. All methods are safe for concurrent
// use; providers never contend with each other.
type Tracker struct {
	entries sync.Map // provider name -> *entry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) entryFor(name string) *entry {
	if v, ok := t.entries.Load(name); ok {
		return v.(*entry)
	}

	v, _ := t.entries.LoadOrStore(name, newEntry())

	return v.(*entry)
}

// RecordSuccess folds a successful real call into the provider's score and
// latency average.
func (t *Tracker) RecordSuccess(name string, latency time.Duration) {
	e := t.entryFor(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.successes++
	e.score = historyWeight*e.score + sampleWeight
	e.observeLatencyLocked(latency)
}

// RecordFailure folds a failed real call into the provider's score.
// Rate-limit failures are additionally counted on their own.
func (t *Tracker) RecordFailure(name string, kind provider.FailureKind) {
	e := t.entryFor(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.failures++
	e.score = historyWeight * e.score

	if kind == provider.FailureRateLimited {
		e.rateLimitHits++
	}
}

// RecordProbe records the outcome of a reachability probe. Probes are kept
// out of the call counters and the score: they measure reachability, not
// request traffic. A successful probe still contributes a latency sample.
func (t *Tracker) RecordProbe(name string, ok bool, latency time.Duration) {
	e := t.entryFor(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastProbeAt = time.Now()
	e.lastProbeOK = ok

	if ok {
		e.consecutiveProbeFailures = 0
		e.observeLatencyLocked(latency)

		return
	}

	e.consecutiveProbeFailures++
}

// Score returns the provider's recency-weighted success rate in [0, 1].
// Unknown providers score 1.0 so new providers are tried optimistically.
func (t *Tracker) Score(name string) float64 {
	v, ok := t.entries.Load(name)
	if !ok {
		return 1.0
	}

	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.score
}

// Snapshot returns a copy of the provider's health signals. ok is false
// when the provider has never been recorded.
func (t *Tracker) Snapshot(name string) (Snapshot, bool) {
	v, ok := t.entries.Load(name)
	if !ok {
		return Snapshot{}, false
	}

	return v.(*entry).snapshot(name), true
}

// Snapshots returns a copy of every provider's health signals, sorted by
// provider name.
func (t *Tracker) Snapshots() []Snapshot {
	var out []Snapshot

	t.entries.Range(func(key, value any) bool {
		out = append(out, value.(*entry).snapshot(key.(string)))

		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })

	return out
}

func (e *entry) snapshot(name string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Provider:                 name,
		Successes:                e.successes,
		Failures:                 e.failures,
		RateLimitHits:            e.rateLimitHits,
		Score:                    e.score,
		AvgLatency:               e.avgLatency,
		LastProbeAt:              e.lastProbeAt,
		LastProbeOK:              e.lastProbeOK,
		ConsecutiveProbeFailures: e.consecutiveProbeFailures,
	}
}
