package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"urlrisk/internal/api"
	"urlrisk/internal/api/handler/v1handler"
	"urlrisk/internal/config"
	"urlrisk/internal/decision"
	"urlrisk/internal/worker"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/metrics"
	"urlrisk/pkg/storage/postgres"
)

func setupServer(ctx context.Context, cfg *config.Config, engine decision.Engine) func(ctx context.Context) {
	server, err := api.NewServer(api.Deps{
		Deps: v1handler.Deps{Engine: engine},
	}, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

// setupWorker starts the River client forwarding outbox records to kafka.
func setupWorker(ctx context.Context, cfg *config.Config, strg *postgres.PgSQL) func(ctx context.Context) {
	forward, err := newKafkaSink(cfg)
	if err != nil {
		logger.Fatal(ctx, "could not create outbox forward sink", zap.Error(err))
	}

	client, err := worker.Start(ctx, strg.Pool, worker.Deps{
		Storage: strg,
		Forward: forward,
	}, worker.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not start background workers", zap.Error(err))
	}

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping background workers...")
		if err := client.Stop(ctx); err != nil {
			logger.Error(ctx, "could not stop background workers", zap.Error(err))
		}
		if err := forward.Close(); err != nil {
			logger.Warn(ctx, "could not close outbox forward sink", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the API server and background workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mp, err := metrics.NewMeterProvider()
			if err != nil {
				logger.Fatal(ctx, "could not create meter provider", zap.Error(err))
			}

			deps := engineDeps{Stdout: os.Stdout, MeterProvider: mp}
			var pgsql *postgres.PgSQL
			if cfg.HasSink(config.SinkPostgres) {
				var closeStrg func()
				pgsql, closeStrg = getPostgres(ctx, cfg)
				defer closeStrg()
				deps.Storage = pgsql
			}

			engine, closeEngine := setupEngine(ctx, cfg, deps)
			defer closeEngine()

			stopWorker := func(context.Context) {}
			if cfg.Audit.Outbox {
				stopWorker = setupWorker(ctx, cfg, pgsql)
			}

			stopWebserver := setupServer(ctx, cfg, engine)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
			stopWorker(shutdownCtx)
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "could not stop meter provider", zap.Error(err))
			}
		},
	}

	return cmd
}
