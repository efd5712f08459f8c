// Package metrics holds the OpenTelemetry instruments recorded by the decision
// service and the meter provider that exports them to Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"urlrisk/pkg/domain"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

const meterName = "urlrisk"

// NewMeterProvider creates an OpenTelemetry meter provider whose readings are
// exported through the Prometheus default registerer.
func NewMeterProvider() (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, fmt.Errorf("could not create otel exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)), nil
}

// Recorder records decision-level metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	decisions       metric.Int64Counter
	scoringDuration metric.Float64Histogram
	scoringFailures metric.Int64Counter
	domainDegraded  metric.Int64Counter
	auditFailures   metric.Int64Counter
}

// NewRecorder registers the decision instruments on the given meter provider.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	var (
		r   Recorder
		err error
	)
	if r.decisions, err = meter.Int64Counter("urlrisk.decisions",
		metric.WithDescription("Number of decisions by prediction and source")); err != nil {
		return nil, fmt.Errorf("could not create decisions counter: %w", err)
	}
	if r.scoringDuration, err = meter.Float64Histogram("urlrisk.scoring.duration",
		metric.WithDescription("Time spent in the probability scorer"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...)); err != nil {
		return nil, fmt.Errorf("could not create scoring duration histogram: %w", err)
	}
	if r.scoringFailures, err = meter.Int64Counter("urlrisk.scoring.failures",
		metric.WithDescription("Number of failed scorer invocations")); err != nil {
		return nil, fmt.Errorf("could not create scoring failures counter: %w", err)
	}
	if r.domainDegraded, err = meter.Int64Counter("urlrisk.domain.degraded",
		metric.WithDescription("Number of URLs whose domain fell back to the raw input")); err != nil {
		return nil, fmt.Errorf("could not create degraded domain counter: %w", err)
	}
	if r.auditFailures, err = meter.Int64Counter("urlrisk.audit.append.failures",
		metric.WithDescription("Number of audit records a sink failed to persist")); err != nil {
		return nil, fmt.Errorf("could not create audit failures counter: %w", err)
	}

	return &r, nil
}

// NewNoopRecorder returns a Recorder backed by a no-op meter provider.
func NewNoopRecorder() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider())

	return r
}

// Decision counts a produced decision.
func (r *Recorder) Decision(ctx context.Context, c domain.Classification, s domain.Source) {
	if r == nil {
		return
	}
	r.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prediction", string(c)),
		attribute.String("source", string(s)),
	))
}

// ScoringDuration observes how long a scorer call took.
func (r *Recorder) ScoringDuration(ctx context.Context, d time.Duration) {
	if r == nil {
		return
	}
	r.scoringDuration.Record(ctx, d.Seconds())
}

// ScoringFailure counts a failed scorer call.
func (r *Recorder) ScoringFailure(ctx context.Context) {
	if r == nil {
		return
	}
	r.scoringFailures.Add(ctx, 1)
}

// DomainDegraded counts a URL resolved through the fallback path.
func (r *Recorder) DomainDegraded(ctx context.Context) {
	if r == nil {
		return
	}
	r.domainDegraded.Add(ctx, 1)
}

// AuditFailure counts an audit record that could not be appended by sink.
func (r *Recorder) AuditFailure(ctx context.Context, sink string) {
	if r == nil {
		return
	}
	r.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
