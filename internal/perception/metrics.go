package perception

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/fusiond/internal/perception"

// Metrics holds ingestion pipeline instruments.
type Metrics struct {
	meter              metric.Meter
	logger             *zap.Logger
	eventsTotal        metric.Int64Counter
	validationFailures metric.Int64Counter
	cycleDuration      metric.Float64Histogram
}

// NewMetrics creates the ingestion metrics set.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.eventsTotal, err = m.meter.Int64Counter(
		"fusiond.ingest.events_total",
		metric.WithDescription("Accepted ingestion events, labeled by device kind."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create events counter", zap.Error(err))
	}

	m.validationFailures, err = m.meter.Int64Counter(
		"fusiond.ingest.validation_failures_total",
		metric.WithDescription("Ingestion requests rejected before touching state."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create validation counter", zap.Error(err))
	}

	m.cycleDuration, err = m.meter.Float64Histogram(
		"fusiond.ingest.cycle_duration_seconds",
		metric.WithDescription("Duration of the fusion plus recommendation cycle per accepted event."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create cycle histogram", zap.Error(err))
	}
}

func (m *Metrics) recordEvent(ctx context.Context, kind string) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordValidationFailure(ctx context.Context) {
	if m == nil || m.validationFailures == nil {
		return
	}
	m.validationFailures.Add(ctx, 1)
}

func (m *Metrics) recordCycle(ctx context.Context, d time.Duration) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Record(ctx, d.Seconds())
}
