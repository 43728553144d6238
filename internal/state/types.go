// Package state owns the shared world state for fusiond.
//
// A single Store instance holds the latest observation reported by each
// perception device together with the derived fusion fields. All reads
// and writes pass through the Store; callers never share the underlying
// maps or slices.
package state

import (
	"time"
)

// Well-known device kinds. The store is open-ended over kind strings;
// these constants cover the producers fusiond ships with.
const (
	KindScreen = "screen"
	KindVoice  = "voice"
	KindCamera = "camera"
)

// Payload is one producer's untyped report. Field sets are
// producer-specific; structural interpretation happens in the fusion
// package, not here.
type Payload map[string]any

// Observation is the latest report from one device kind. Each update
// replaces the previous observation wholesale; no field-level merge and
// no history.
type Observation struct {
	Kind       string    `json:"kind"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// WorldState is the aggregate the daemon serves: raw per-device
// observations plus the derived fusion fields.
type WorldState struct {
	Devices map[string]Observation `json:"devices"`

	// Derived fields, replaced atomically by ApplyFusionResult.
	FusedDetail     []string `json:"fused_detail"`
	FusedSummary    string   `json:"fused_summary"`
	Recommendations []string `json:"recommendations"`

	// Latency of the last fusion+recommendation cycle.
	Latency time.Duration `json:"latency_ns"`

	// EventsProcessed counts accepted ingestions, independent of
	// fusion or provider outcome.
	EventsProcessed uint64 `json:"events_processed"`

	// LastUpdated is the time of the last successful fusion apply.
	LastUpdated time.Time `json:"last_updated"`
}

// clone returns a deep copy safe to hand to readers.
func (w WorldState) clone() WorldState {
	out := w
	out.Devices = make(map[string]Observation, len(w.Devices))
	for k, obs := range w.Devices {
		obs.Payload = clonePayload(obs.Payload)
		out.Devices[k] = obs
	}
	out.FusedDetail = append([]string(nil), w.FusedDetail...)
	out.Recommendations = append([]string(nil), w.Recommendations...)
	return out
}

// clonePayload copies a payload one level deep plus nested maps and
// slices, which is as deep as producer payloads nest in practice.
func clonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}
