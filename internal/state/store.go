package state

import (
	"strings"
	"sync"
	"time"
)

// Store is the sole owner of the WorldState. It is safe for concurrent
// use: writers are serialized, and Snapshot hands out deep copies so
// readers can never observe a half-applied fusion result.
type Store struct {
	mu    sync.RWMutex
	world WorldState
	now   func() time.Time
}

// NewStore creates an empty store: all device slots empty, counters
// zero. The store lives for the process lifetime.
func NewStore() *Store {
	return &Store{
		world: WorldState{
			Devices: make(map[string]Observation),
		},
		now: time.Now,
	}
}

// NormalizeKind canonicalizes a device kind. Two updates differing only
// in case or surrounding whitespace refer to the same slot.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// Upsert replaces the observation for the given device kind and
// increments the events counter. The previous observation is returned
// for observability; replaced is false when the slot was empty.
//
// Upsert never fails on well-formed input. Unknown kinds get their own
// slot; the store is open-ended over kind strings.
func (s *Store) Upsert(kind string, payload Payload) (prev Observation, replaced bool) {
	kind = NormalizeKind(kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, replaced = s.world.Devices[kind]
	s.world.Devices[kind] = Observation{
		Kind:       kind,
		Payload:    clonePayload(payload),
		ReceivedAt: s.now(),
	}
	s.world.EventsProcessed++
	return prev, replaced
}

// Snapshot returns a deep copy of the full world state. The copy is
// made under a read lock, so writers are blocked no longer than the
// copy itself and the returned value is immutable from the store's
// point of view.
func (s *Store) Snapshot() WorldState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.clone()
}

// Devices returns a deep copy of just the raw per-device observations,
// the input the fusion engine consumes.
func (s *Store) Devices() map[string]Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Observation, len(s.world.Devices))
	for k, obs := range s.world.Devices {
		obs.Payload = clonePayload(obs.Payload)
		out[k] = obs
	}
	return out
}

// EventsProcessed returns the current accepted-ingestion count.
func (s *Store) EventsProcessed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.EventsProcessed
}

// ApplyFusionResult atomically replaces every derived field together.
// Partial application (detail without summary, summary without
// recommendations) is not expressible through this API.
func (s *Store) ApplyFusionResult(detail []string, summary string, recs []string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world.FusedDetail = append([]string(nil), detail...)
	s.world.FusedSummary = summary
	s.world.Recommendations = append([]string(nil), recs...)
	s.world.Latency = latency
	s.world.LastUpdated = s.now()
}
