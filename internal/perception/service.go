// Package perception implements the ingestion pipeline: validate an
// inbound device update, write it into the state store, re-run fusion,
// fetch recommendations and apply the result atomically.
package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fusiond/internal/fusion"
	"github.com/fyrsmithlabs/fusiond/internal/recommend"
	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// Validation errors. These are reported to the caller of Update and
// never mutate state.
var (
	ErrMissingDevice  = errors.New("device is required")
	ErrInvalidPayload = errors.New("data must be a JSON object")
)

// Fixed diagnostic text applied when fusion itself fails. The process
// keeps serving; the next accepted update overwrites it.
const (
	fusionErrorSummary = "Fusion error"
)

// Service serializes all world-state mutation. One mutex covers the
// whole update+fuse+recommend+apply sequence, which both prevents
// interleaved partial writes and guarantees at most one provider call
// in flight at a time. Readers go through Snapshot and are only blocked
// for the duration of a copy.
type Service struct {
	store   *state.Store
	gen     *recommend.Generator
	opts    fusion.Options
	logger  *zap.Logger
	metrics *Metrics

	mu sync.Mutex
}

// NewService wires the ingestion pipeline. store and gen are required;
// a nil logger is replaced with a no-op logger.
func NewService(store *state.Store, gen *recommend.Generator, opts fusion.Options, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("recommendation generator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   store,
		gen:     gen,
		opts:    opts,
		logger:  logger,
		metrics: NewMetrics(logger),
	}, nil
}

// Update ingests one device report and runs the full fusion cycle.
//
// data may be nil (treated as an empty report, matching producers that
// post heartbeats) but must otherwise be an object-shaped mapping.
// Unrecognized device names are accepted as free-form kinds.
//
// On success it returns the freshly computed fused detail lines as the
// acknowledgment for the producer. Validation failures return a named
// error and leave all state untouched.
func (s *Service) Update(ctx context.Context, device string, data any) ([]string, error) {
	if strings.TrimSpace(device) == "" {
		s.metrics.recordValidationFailure(ctx)
		return nil, ErrMissingDevice
	}

	payload, err := coercePayload(data)
	if err != nil {
		s.metrics.recordValidationFailure(ctx)
		return nil, err
	}

	kind := state.NormalizeKind(device)
	eventID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.store.Upsert(kind, payload)
	s.metrics.recordEvent(ctx, kind)

	start := time.Now()

	detail, summary, recs := s.runCycle(ctx)

	latency := time.Since(start)
	s.store.ApplyFusionResult(detail, summary, recs, latency)
	s.metrics.recordCycle(ctx, latency)

	s.logger.Info("context updated",
		zap.String("event_id", eventID),
		zap.String("kind", kind),
		zap.Bool("replaced", replaced),
		zap.Duration("latency", latency),
		zap.Int("recommendations", len(recs)),
	)

	return detail, nil
}

// runCycle computes the derived fields for the current raw state. A
// fusion failure is absorbed here: the derived fields become diagnostic
// text, recommendations are cleared, and the caller still gets a
// definite result.
func (s *Service) runCycle(ctx context.Context) (detail []string, summary string, recs []string) {
	result, err := s.fuse()
	if err != nil {
		s.logger.Error("fusion failed", zap.Error(err))
		return []string{"Fusion error: " + err.Error()}, fusionErrorSummary, nil
	}

	recs = s.gen.Generate(ctx, strings.Join(result.Detail, "\n"))
	return result.Detail, result.Summary, recs
}

// fuse runs the pure fusion engine over a copy of the raw device state,
// converting any panic into an error so no producer payload can take
// the daemon down.
func (s *Service) fuse() (result fusion.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fusion.Fuse(s.store.Devices(), s.opts), nil
}

// Snapshot exposes the store's consistent read path for query
// consumers.
func (s *Service) Snapshot() state.WorldState {
	return s.store.Snapshot()
}

// coercePayload validates the object shape of a device report.
func coercePayload(data any) (state.Payload, error) {
	switch v := data.(type) {
	case nil:
		return state.Payload{}, nil
	case state.Payload:
		return v, nil
	case map[string]any:
		return v, nil
	default:
		return nil, ErrInvalidPayload
	}
}
