// Package decision turns a raw URL into a risk decision: the URL is resolved
// to a domain, trusted domains short-circuit to benign, and everything else is
// scored and classified against calibrated thresholds. Every decision is handed
// to the audit sink before it is returned.
package decision

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"urlrisk/pkg/audit"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/metrics"
	"urlrisk/pkg/scorer"
	"urlrisk/pkg/serrors"
)

// TrustedProbability is the probability reported for trusted domains. It is a
// fixed sentinel, not a model output.
const TrustedProbability = 0.01

// Options are the process-wide, immutable parameters of an Engine.
type Options struct {
	// Thresholds partition the probability space into the three labels.
	Thresholds domain.Thresholds
	// ModelVersion is copied into every decision.
	ModelVersion string
	// AuditAppendTimeout bounds the audit append of one decision. Zero leaves
	// the append unbounded.
	AuditAppendTimeout time.Duration
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Registry *TrustRegistry
	Scorer   scorer.Scorer
	Sink     audit.Sink
	// Metrics is optional; a nil recorder records nothing.
	Metrics *metrics.Recorder
	// Clock is optional and defaults to time.Now.
	Clock func() time.Time
}

type engine struct {
	options Options

	registry *TrustRegistry
	scorer   scorer.Scorer
	sink     audit.Sink
	metrics  *metrics.Recorder
	clock    func() time.Time
}

// New creates an Engine. It fails with serrors.ErrInvalidConfig when the
// thresholds are invalid or a required dependency is missing.
func New(options Options, deps Deps) (Engine, error) {
	if err := options.Thresholds.Validate(); err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidConfig, err, "invalid thresholds")
	}
	if deps.Registry == nil {
		return nil, serrors.With(serrors.ErrInvalidConfig, "trust registry is required")
	}
	if deps.Scorer == nil {
		return nil, serrors.With(serrors.ErrInvalidConfig, "scorer is required")
	}
	if deps.Sink == nil {
		return nil, serrors.With(serrors.ErrInvalidConfig, "audit sink is required")
	}
	if options.AuditAppendTimeout < 0 {
		return nil, serrors.With(serrors.ErrInvalidConfig, "audit append timeout must not be negative")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &engine{
		options:  options,
		registry: deps.Registry,
		scorer:   deps.Scorer,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		clock:    clock,
	}, nil
}

// Decide evaluates a single URL. A trusted domain yields a benign decision
// without consulting the scorer. Scorer failures, including out-of-range
// probabilities, are returned as serrors.ErrUnavailable and never become a
// label. Audit failures are logged and do not affect the result.
func (e *engine) Decide(ctx context.Context, URL string) (*domain.Decision, error) {
	host, degraded := Resolve(URL)
	if degraded {
		e.metrics.DomainDegraded(ctx)
		logger.Debug(ctx, "could not extract host from url, using raw input as domain",
			zap.String("url", URL))
	}

	d := domain.Decision{
		ID:           domain.DecisionID(uuid.New()),
		URL:          URL,
		Domain:       host,
		Thresholds:   e.options.Thresholds,
		ModelVersion: e.options.ModelVersion,
	}

	if e.registry.IsTrusted(host) {
		d.Trusted = true
		d.Classification = domain.ClassificationBenign
		d.Probability = TrustedProbability
		d.Source = domain.SourceWhitelist
	} else {
		p, err := e.score(ctx, URL)
		if err != nil {
			return nil, err
		}

		d.Classification = Classify(p, e.options.Thresholds)
		d.Probability = p
		d.Source = domain.SourceModel
	}
	d.Timestamp = e.clock().UTC()

	e.metrics.Decision(ctx, d.Classification, d.Source)
	e.emit(ctx, d)

	return &d, nil
}

func (e *engine) score(ctx context.Context, URL string) (float64, error) {
	start := time.Now()
	p, err := e.scorer.Score(ctx, URL)
	e.metrics.ScoringDuration(ctx, time.Since(start))
	if err != nil {
		e.metrics.ScoringFailure(ctx)

		return 0, serrors.Wrap(serrors.ErrUnavailable, err, "scoring unavailable")
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		e.metrics.ScoringFailure(ctx)
		logger.Error(ctx, "scorer returned an invalid probability", zap.Float64("probability", p))

		return 0, serrors.With(serrors.ErrUnavailable, "scoring unavailable: invalid probability %v", p)
	}

	return p, nil
}

// emit appends the audit record on a context that outlives the request but
// not AuditAppendTimeout.
func (e *engine) emit(ctx context.Context, d domain.Decision) {
	rec := domain.NewAuditRecord(d, domain.CallerFromContext(ctx))

	appendCtx := context.WithoutCancel(ctx)
	if e.options.AuditAppendTimeout > 0 {
		var cancel context.CancelFunc
		appendCtx, cancel = context.WithTimeout(appendCtx, e.options.AuditAppendTimeout)
		defer cancel()
	}

	if err := e.sink.Append(appendCtx, rec); err != nil {
		e.metrics.AuditFailure(ctx, e.sink.Name())
		logger.Error(ctx, "could not append audit record",
			zap.String("decisionID", d.ID.String()),
			zap.String("sink", e.sink.Name()),
			zap.Error(err))
	}
}

func (e *engine) Info() Info {
	return Info{
		ModelVersion:   e.options.ModelVersion,
		Thresholds:     e.options.Thresholds,
		TrustedEntries: e.registry.Len(),
	}
}
