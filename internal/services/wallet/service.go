package wallet

import (
	"context"
	"errors"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
)

type service struct {
	repo    repositories.WalletRepository
	tx      repositories.TxManager
	metrics MetricsCollector
}

// NewService creates a new wallet service
func NewService(repo repositories.WalletRepository, tx repositories.TxManager, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if tx == nil {
		panic("tx manager is required")
	}
	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &service{repo: repo, tx: tx, metrics: metrics}
}

func (s *service) GetWallet(ctx context.Context, merchantID uint) (*models.Wallet, error) {
	return s.repo.GetByMerchantID(ctx, merchantID)
}

// EnsureWallet returns the merchant's wallet, creating an empty one if needed.
func (s *service) EnsureWallet(ctx context.Context, merchantID uint) (*models.Wallet, error) {
	w, err := s.repo.GetByMerchantID(ctx, merchantID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, apperrors.ErrWalletNotFound) {
		return nil, err
	}
	w = &models.Wallet{
		MerchantID: merchantID,
		Currency:   models.DefaultCurrency,
		Status:     models.WalletStatusActive,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if repositories.IsUniqueViolation(err) {
			return s.repo.GetByMerchantID(ctx, merchantID)
		}
		return nil, err
	}
	return w, nil
}

func (s *service) LockWallet(ctx context.Context, merchantID uint) (*models.Wallet, error) {
	if !repositories.InTx(ctx) {
		return nil, fmt.Errorf("lock wallet %d: no transaction in context", merchantID)
	}
	return s.repo.GetForUpdate(ctx, merchantID)
}

func (s *service) ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, int64, error) {
	return s.repo.List(ctx, limit, offset)
}

// SetStatus locks or unlocks a wallet. A locked wallet still accepts credits.
func (s *service) SetStatus(ctx context.Context, merchantID uint, status, reason string) (*models.Wallet, error) {
	if status != models.WalletStatusActive && status != models.WalletStatusLocked {
		return nil, apperrors.ErrInvalidRequest.WithMessage("status must be active or locked")
	}
	var out *models.Wallet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, merchantID)
		if err != nil {
			return err
		}
		w.Status = status
		w.StatusReason = reason
		if status == models.WalletStatusActive {
			w.StatusReason = ""
		}
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) ListEntries(ctx context.Context, merchantID uint, filter repositories.EntryFilter, limit, offset int) ([]models.WalletEntry, int64, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, apperrors.ErrInvalidRequest.WithMessage("unknown entry type")
	}
	return s.repo.ListEntries(ctx, merchantID, filter, limit, offset)
}
