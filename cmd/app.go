package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"urlrisk/internal/config"
	"urlrisk/internal/decision"
	"urlrisk/pkg/audit"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/metrics"
	"urlrisk/pkg/model"
	"urlrisk/pkg/scorer"
	"urlrisk/pkg/storage"
)

// engineDeps are the process-level resources an engine is built on.
type engineDeps struct {
	// Storage backs the postgres sink; nil when the sink is disabled.
	Storage storage.Storage
	// Stdout receives the stdout sink's lines.
	Stdout io.Writer
	// MeterProvider records decision metrics; nil disables them.
	MeterProvider metric.MeterProvider
}

// buildSinks creates the audit sinks enabled in cfg.
func buildSinks(cfg *config.Config, deps engineDeps) (audit.Sink, error) {
	sinks := make([]audit.Sink, 0, len(cfg.Audit.Sinks))
	closeAll := func() { _ = audit.NewMulti(sinks...).Close() }

	for _, name := range cfg.Audit.Sinks {
		switch name {
		case config.SinkFile:
			s, err := audit.NewFileSink(cfg.Audit.FilePath)
			if err != nil {
				closeAll()

				return nil, fmt.Errorf("could not open audit file: %w", err)
			}
			sinks = append(sinks, s)
		case config.SinkStdout:
			sinks = append(sinks, audit.NewWriterSink("stdout", deps.Stdout))
		case config.SinkPostgres:
			if deps.Storage == nil {
				closeAll()

				return nil, errors.New("postgres audit sink requires a database connection")
			}
			sinks = append(sinks, audit.NewStorageSink(deps.Storage, cfg.Audit.Outbox))
		case config.SinkKafka:
			s, err := newKafkaSink(cfg)
			if err != nil {
				closeAll()

				return nil, err
			}
			sinks = append(sinks, s)
		default:
			closeAll()

			return nil, fmt.Errorf("unknown audit sink %q", name)
		}
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}

	return audit.NewMulti(sinks...), nil
}

func newKafkaSink(cfg *config.Config) (*audit.KafkaSink, error) {
	s, err := audit.NewKafkaSink(audit.KafkaOptions{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		WriteTimeout: cfg.Audit.AppendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create kafka sink: %w", err)
	}

	return s, nil
}

// setupEngine loads the model bundle and trusted domains, builds the scorer
// and audit sinks and returns the decision engine with a cleanup function.
// Any startup failure is fatal.
func setupEngine(ctx context.Context, cfg *config.Config, deps engineDeps) (decision.Engine, func()) {
	bundle, err := model.Load(cfg.Model.BundleDir)
	if err != nil {
		logger.Fatal(ctx, "could not load model bundle", zap.Error(err))
	}
	logger.Info(ctx, "model bundle loaded", zap.Stringer("bundle", bundle), zap.String("kind", cfg.Model.Kind))

	registry, rewrites := decision.NewTrustRegistry(cfg.Trust.Domains)
	for _, rw := range rewrites {
		if rw.To == "" {
			logger.Warn(ctx, "trusted domain entry dropped", zap.String("entry", rw.From))

			continue
		}
		logger.Warn(ctx, "trusted domain entry normalized", zap.String("entry", rw.From), zap.String("as", rw.To))
	}
	if registry.Len() == 0 {
		logger.Warn(ctx, "no trusted domains configured")
	}

	inner, closeScorer, err := bundle.NewScorer(model.ScorerOptions{
		Kind:                  cfg.Model.Kind,
		ONNXSharedLibraryPath: cfg.Model.ONNXSharedLibraryPath,
		ONNXOutputName:        cfg.Model.ONNXOutputName,
		ONNXIntraOpThreads:    cfg.Model.ONNXIntraOpThreads,
		RemoteEndpoint:        cfg.Model.RemoteEndpoint,
		RemoteToken:           cfg.Model.RemoteToken,
		RemoteTimeout:         cfg.Model.RemoteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "could not create scorer", zap.Error(err))
	}

	sink, err := buildSinks(cfg, deps)
	if err != nil {
		_ = closeScorer()
		logger.Fatal(ctx, "could not create audit sinks", zap.Error(err))
	}

	recorder := metrics.NewNoopRecorder()
	if deps.MeterProvider != nil {
		if recorder, err = metrics.NewRecorder(deps.MeterProvider); err != nil {
			logger.Fatal(ctx, "could not create metrics recorder", zap.Error(err))
		}
	}

	engine, err := decision.New(decision.Options{
		Thresholds:         bundle.Thresholds,
		ModelVersion:       bundle.Version,
		AuditAppendTimeout: cfg.Audit.AppendTimeout,
	}, decision.Deps{
		Registry: registry,
		Scorer: scorer.NewPool(inner, scorer.PoolOptions{
			MaxConcurrency: cfg.Model.MaxConcurrency,
			Timeout:        cfg.Model.Timeout,
		}),
		Sink:    sink,
		Metrics: recorder,
	})
	if err != nil {
		logger.Fatal(ctx, "could not create decision engine", zap.Error(err))
	}

	logger.Info(ctx, "decision engine ready",
		zap.String("modelVersion", bundle.Version),
		zap.Float64("safeThreshold", bundle.Thresholds.Safe),
		zap.Float64("maliciousThreshold", bundle.Thresholds.Malicious),
		zap.Int("trustedEntries", registry.Len()),
		zap.String("auditSink", sink.Name()))

	return engine, func() {
		logger.Info(ctx, "closing audit sinks...")
		if err := sink.Close(); err != nil {
			logger.Warn(ctx, "could not close audit sinks", zap.Error(err))
		}
		if err := closeScorer(); err != nil {
			logger.Warn(ctx, "could not close scorer", zap.Error(err))
		}
	}
}
