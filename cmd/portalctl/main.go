// Command portalctl runs one-off maintenance tasks against the portal
// database: migrations, the first owner account, Mercury invoice polling
// and login code cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"portal/internal/app"
	"portal/internal/config"
	"portal/internal/logging"
	"portal/internal/metrics"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:           "portalctl",
	Short:         "Maintenance commands for the fulfillment portal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "abort the command after this long")
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, syncInvoicesCmd, purgeCodesCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is an opened database plus the wired services, closed by cleanup.
type env struct {
	app     *app.App
	logger  *zap.Logger
	cleanup func()
}

func open() (*env, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.Init(cfg.Log.Level, cfg.Server.Env, "portalctl")
	if err != nil {
		return nil, err
	}
	db, err := repositories.Open(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	rdb := cache.NewRedisClient(cfg.Redis)
	a := app.New(cfg, db, rdb, metrics.New(), logger)
	return &env{
		app:    a,
		logger: logger,
		cleanup: func() {
			if err := repositories.Close(db); err != nil {
				logger.Warn("close database", zap.Error(err))
			}
			_ = rdb.Close()
			_ = logger.Sync()
		},
	}, nil
}

func withEnv(run func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.cleanup()
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return run(ctx, e, args)
	}
}
