package wallet

import (
	"context"

	"portal/internal/models"
	"portal/internal/repositories"
)

// Service defines the wallet service interface
type Service interface {
	GetWallet(ctx context.Context, merchantID uint) (*models.Wallet, error)
	EnsureWallet(ctx context.Context, merchantID uint) (*models.Wallet, error)
	// LockWallet takes the wallet row lock for the surrounding transaction.
	LockWallet(ctx context.Context, merchantID uint) (*models.Wallet, error)
	ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, int64, error)
	SetStatus(ctx context.Context, merchantID uint, status, reason string) (*models.Wallet, error)

	// Ledger operations
	Credit(ctx context.Context, op Operation) (*models.WalletEntry, error)
	Debit(ctx context.Context, op Operation) (*models.WalletEntry, error)
	Hold(ctx context.Context, op Operation) (*models.WalletEntry, error)
	Release(ctx context.Context, op Operation) (*models.WalletEntry, error)
	CompleteHold(ctx context.Context, merchantID uint, amountCents int64) error
	Adjust(ctx context.Context, merchantID uint, amountCents int64, reason string, adminID uint) (*models.WalletEntry, error)

	ListEntries(ctx context.Context, merchantID uint, filter repositories.EntryFilter, limit, offset int) ([]models.WalletEntry, int64, error)
}

// MetricsCollector is satisfied by *metrics.Registry.
type MetricsCollector interface {
	WalletEntryWritten(entryType string)
}

type nopMetrics struct{}

func (nopMetrics) WalletEntryWritten(string) {}
