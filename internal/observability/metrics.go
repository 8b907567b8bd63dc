package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// Metrics is the process-wide meter bundle. All components report
// through it; nil receivers no-op so tests can pass a zero value.
type Metrics struct {
	jobExecuted     metric.Int64Counter
	jobFailed       metric.Int64Counter
	jobDeadLettered metric.Int64Counter
	jobDuration     metric.Float64Histogram

	ingestEvents metric.Int64Counter
	vectorOps    metric.Int64Counter

	queueDepth metric.Int64Gauge
	syncHealth metric.Float64Gauge
}

func NewMetrics(ctx context.Context, log *logger.Logger) (*Metrics, func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(60*time.Second))),
	)
	otel.SetMeterProvider(provider)
	meter := provider.Meter("guildmind")

	m := &Metrics{}
	if m.jobExecuted, err = meter.Int64Counter("jobs_executed_total"); err != nil {
		return nil, nil, err
	}
	if m.jobFailed, err = meter.Int64Counter("jobs_failed_total"); err != nil {
		return nil, nil, err
	}
	if m.jobDeadLettered, err = meter.Int64Counter("jobs_dead_lettered_total"); err != nil {
		return nil, nil, err
	}
	if m.jobDuration, err = meter.Float64Histogram("job_duration_seconds"); err != nil {
		return nil, nil, err
	}
	if m.ingestEvents, err = meter.Int64Counter("ingest_events_total"); err != nil {
		return nil, nil, err
	}
	if m.vectorOps, err = meter.Int64Counter("vector_ops_total"); err != nil {
		return nil, nil, err
	}
	if m.queueDepth, err = meter.Int64Gauge("job_queue_depth"); err != nil {
		return nil, nil, err
	}
	if m.syncHealth, err = meter.Float64Gauge("sync_health_ratio"); err != nil {
		return nil, nil, err
	}

	if log != nil {
		log.Info("metrics initialized", "exporter", "stdout")
	}
	return m, provider.Shutdown, nil
}

func (m *Metrics) JobExecuted(ctx context.Context, jobType string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("job_type", jobType))
	m.jobExecuted.Add(ctx, 1, attrs)
	if !ok {
		m.jobFailed.Add(ctx, 1, attrs)
	}
	m.jobDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) JobDeadLettered(ctx context.Context, jobType, reason string) {
	if m == nil {
		return
	}
	m.jobDeadLettered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", jobType),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) IngestEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.ingestEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) VectorOp(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.vectorOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) RecordQueueDepth(ctx context.Context, priority string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("priority", priority)))
}

// RecordSyncHealth reports synced / (synced + unindexed + stale) for a
// guild. Healthy is above 0.95.
func (m *Metrics) RecordSyncHealth(ctx context.Context, guildID int64, ratio float64) {
	if m == nil {
		return
	}
	m.syncHealth.Record(ctx, ratio, metric.WithAttributes(attribute.Int64("guild_id", guildID)))
}
