package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"urlrisk/internal/api/handler/v1handler"
	"urlrisk/internal/config"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/logger"
)

// evaluateCommand evaluates the URLs given as arguments with the configured
// engine and prints one decision per line. Audit lines of the stdout sink go
// to stderr so stdout only carries decisions.
func evaluateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate URL [URL...]",
		Short: "Evaluates URLs and prints one decision JSON per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = domain.WithCaller(ctx, "cli")

			deps := engineDeps{Stdout: os.Stderr}
			if cfg.HasSink(config.SinkPostgres) {
				pgsql, closeStrg := getPostgres(ctx, cfg)
				defer closeStrg()
				deps.Storage = pgsql
			}

			engine, closeEngine := setupEngine(ctx, cfg, deps)
			defer closeEngine()

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer func() { _ = out.Flush() }()

			e := jx.GetEncoder()
			defer jx.PutEncoder(e)

			var failed bool
			for _, raw := range args {
				d, err := engine.Decide(ctx, raw)
				if err != nil {
					logger.Error(ctx, "could not evaluate URL", zap.String("url", raw), zap.Error(err))
					failed = true

					continue
				}

				e.Reset()
				v1handler.EncodeDecision(e, d)
				_, _ = out.Write(e.Bytes())
				_ = out.WriteByte('\n')
			}

			if failed {
				return errEvaluateFailed
			}

			return nil
		},
	}
	cmd.SilenceUsage = true

	return cmd
}

var errEvaluateFailed = errors.New("some URLs could not be evaluated")
