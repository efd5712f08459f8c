package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river/riverdriver/riverdatabasesql"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	root "urlrisk"
	"urlrisk/internal/config"
	"urlrisk/pkg/logger"
)

// migrateCommand constructs the 'migrate' subcommand. It brings the audit
// schema and, unless --skip-jobs is set, the river job tables up to date.
func migrateCommand(cfg *config.Config) *cobra.Command {
	var skipJobs bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrates the audit database to the latest version",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			strg, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			db := strg.DB.(*sql.DB)

			version, err := migrateAuditSchema(db)
			if err != nil {
				logger.Fatal(ctx, "could not migrate audit schema", zap.Error(err))
			}
			logger.Info(ctx, "audit schema is up to date", zap.Int64("version", version))

			if skipJobs {
				return
			}

			applied, err := migrateJobTables(ctx, db)
			if err != nil {
				logger.Fatal(ctx, "could not migrate job tables", zap.Error(err))
			}
			logger.Info(ctx, "job tables are up to date", zap.Int("applied", applied))
		},
	}
	cmd.Flags().BoolVar(&skipJobs, "skip-jobs", false, "only migrate the audit schema")

	return cmd
}

// migrateAuditSchema runs the embedded goose migrations and returns the
// resulting schema version.
func migrateAuditSchema(db *sql.DB) (int64, error) {
	goose.SetBaseFS(root.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("could not set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return 0, err
	}

	return goose.GetDBVersion(db)
}

// migrateJobTables moves the river schema to its latest version and returns
// how many versions were applied.
func migrateJobTables(ctx context.Context, db *sql.DB) (int, error) {
	migrator, err := rivermigrate.New(riverdatabasesql.New(db), nil)
	if err != nil {
		return 0, fmt.Errorf("could not create river migrator: %w", err)
	}

	all := migrator.AllVersions()
	latest := all[len(all)-1].Version

	existing, err := migrator.ExistingVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list existing river migrations: %w", err)
	}
	if len(existing) > 0 && existing[len(existing)-1].Version >= latest {
		return 0, nil
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{TargetVersion: latest})
	if err != nil {
		return 0, err
	}

	return len(res.Versions), nil
}
