package snmpquery

import (
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Counter delta state
// ─────────────────────────────────────────────────────────────────────────────

// CounterKey uniquely identifies a counter observation: device plus the
// namespaced reading key, so counter state is isolated per target.
type CounterKey struct {
	Device string
	Key    string
}

// counterEntry holds the previously observed value and the time it was
// recorded.
type counterEntry struct {
	Value  uint64
	SeenAt time.Time
}

// CounterState tracks the last known value of every observed counter so the
// producer can emit per-interval deltas for count/count64 targets. It is
// safe for concurrent use — one instance is shared by every device poll
// goroutine.
//
// Counter32 wraps at 2^32 − 1; Counter64 at 2^64 − 1. The wrap threshold
// passed to Delta controls which rollover behaviour applies.
type CounterState struct {
	mu      sync.Mutex
	entries map[CounterKey]counterEntry
}

// NewCounterState creates a ready-to-use CounterState.
func NewCounterState() *CounterState {
	return &CounterState{
		entries: make(map[CounterKey]counterEntry),
	}
}

// DeltaResult is returned by Delta. Both fields are meaningful only when
// Valid is true.
type DeltaResult struct {
	// Delta is the computed increase in counter value since the last sample.
	// Always ≥ 0; a single counter wrap is accounted for.
	Delta uint64

	// Elapsed is the time between the previous sample and this sample.
	Elapsed time.Duration

	// Valid is false on the first observation of a key (no previous sample),
	// or when the timestamps are equal.
	Valid bool
}

// Delta records the current counter value and, if a previous sample exists,
// returns the delta and elapsed time. On first observation it stores the
// value and returns Valid=false — the producer skips the reading for that
// cycle and emits a delta on the next one.
//
// wrap is the rollover boundary: WrapCounter32 for count targets,
// WrapCounter64 for count64. If current < previous the counter is assumed
// to have rolled over exactly once.
func (s *CounterState) Delta(key CounterKey, current uint64, now time.Time, wrap uint64) DeltaResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.entries[key]
	s.entries[key] = counterEntry{Value: current, SeenAt: now}

	if !exists {
		return DeltaResult{Valid: false}
	}

	elapsed := now.Sub(prev.SeenAt)
	if elapsed <= 0 {
		return DeltaResult{Valid: false}
	}

	var delta uint64
	if current >= prev.Value {
		delta = current - prev.Value
	} else {
		// Counter wrapped once. Add the distance to the wrap boundary plus current.
		delta = (wrap - prev.Value) + current + 1
	}

	return DeltaResult{
		Delta:   delta,
		Elapsed: elapsed,
		Valid:   true,
	}
}

// Purge removes all counter entries whose last observation is older than
// maxAge. Call on a slow timer to reclaim memory for devices removed from
// the configuration.
func (s *CounterState) Purge(maxAge time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := 0
	for k, e := range s.entries {
		if e.SeenAt.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Wrap boundaries for the two counter widths.
const (
	WrapCounter32 = uint64(^uint32(0))
	WrapCounter64 = ^uint64(0)
)
