package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portal/internal/repositories"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every table",
	RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
		if err := repositories.Migrate(e.app.DB.WithContext(ctx)); err != nil {
			return err
		}
		e.logger.Info("migration complete")
		return nil
	}),
}

var (
	ownerEmail string
	ownerName  string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the first owner admin",
	RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
		if ownerEmail == "" {
			return errors.New("--email is required")
		}
		admin, created, err := e.app.Team.SeedOwner(ctx, ownerEmail, ownerName)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("admin %s already exists (role %s, status %s)\n", admin.Email, admin.Role, admin.Status)
			return nil
		}
		fmt.Printf("owner %s created; sign in with a login code\n", admin.Email)
		return nil
	}),
}

var syncLimit int

var syncInvoicesCmd = &cobra.Command{
	Use:   "sync-invoices",
	Short: "Poll Mercury for open invoices and credit paid ones",
	RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
		synced, failed, err := e.app.Invoices.SyncOpen(ctx, syncLimit)
		if err != nil {
			return err
		}
		e.logger.Info("invoices synced", zap.Int("synced", synced), zap.Int("failed", failed))
		if failed > 0 {
			return fmt.Errorf("%d invoices failed to sync", failed)
		}
		return nil
	}),
}

var purgeAge time.Duration

var purgeCodesCmd = &cobra.Command{
	Use:   "purge-codes",
	Short: "Delete expired admin login codes",
	RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
		n, err := e.app.AdminAuth.PurgeExpiredCodes(ctx, purgeAge)
		if err != nil {
			return err
		}
		e.logger.Info("login codes purged", zap.Int64("deleted", n))
		return nil
	}),
}

func init() {
	seedAdminCmd.Flags().StringVar(&ownerEmail, "email", "", "owner email address")
	seedAdminCmd.Flags().StringVar(&ownerName, "name", "Owner", "owner display name")
	syncInvoicesCmd.Flags().IntVar(&syncLimit, "limit", 500, "maximum invoices to check")
	purgeCodesCmd.Flags().DurationVar(&purgeAge, "older-than", 24*time.Hour, "keep codes that expired more recently than this")
}
