// Package worker runs the background jobs of the decision service on River.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap/exp/zapslog"

	"urlrisk/internal/config"
	"urlrisk/pkg/audit"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/storage"
)

// defaultMaxWorkers is used when Options.MaxWorkers is not positive.
const defaultMaxWorkers = 10

// Options configures the River client.
type Options struct {
	// MaxWorkers is the number of jobs the default queue runs concurrently.
	MaxWorkers int
}

// NewOptions maps the worker settings of cfg.
func NewOptions(cfg *config.Config) Options {
	return Options{MaxWorkers: cfg.Worker.MaxWorkers}
}

// Deps are the collaborators of the registered workers.
type Deps struct {
	Storage storage.AuditStorage
	// Forward receives the records enqueued by the audit outbox.
	Forward audit.Sink
}

// NewWorkers registers every job worker of the service.
func NewWorkers(deps Deps) (*river.Workers, error) {
	if deps.Storage == nil || deps.Forward == nil {
		return nil, errors.New("audit storage and forward sink are required")
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewAuditForwardWorker(deps.Storage, deps.Forward))

	return workers, nil
}

// Start creates and starts a River client processing the default queue.
func Start(ctx context.Context, dbPool *pgxpool.Pool, deps Deps, opts Options) (*river.Client[pgx.Tx], error) {
	workers, err := NewWorkers(deps)
	if err != nil {
		return nil, err
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
		Logger:  slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create river queue client: %w", err)
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start river queue client: %w", err)
	}

	return riverClient, nil
}
