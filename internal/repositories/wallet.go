package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

// EntryFilter narrows ledger listings.
type EntryFilter struct {
	Type models.EntryType
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByMerchantID(ctx context.Context, merchantID uint) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, merchantID uint) (*models.Wallet, error)
	Update(ctx context.Context, wallet *models.Wallet) error
	List(ctx context.Context, limit, offset int) ([]models.Wallet, int64, error)
	SumBalances(ctx context.Context) (int64, error)

	CreateEntry(ctx context.Context, entry *models.WalletEntry) error
	EntryExists(ctx context.Context, entryType models.EntryType, reference string) (bool, error)
	ListEntries(ctx context.Context, merchantID uint, filter EntryFilter, limit, offset int) ([]models.WalletEntry, int64, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := FromContext(ctx, r.db).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetByMerchantID(ctx context.Context, merchantID uint) (*models.Wallet, error) {
	return r.first(FromContext(ctx, r.db), merchantID)
}

func (r *walletRepository) GetForUpdate(ctx context.Context, merchantID uint) (*models.Wallet, error) {
	return r.first(forUpdate(FromContext(ctx, r.db)), merchantID)
}

func (r *walletRepository) first(db *gorm.DB, merchantID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := db.Where("merchant_id = ?", merchantID).First(&wallet).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) Update(ctx context.Context, wallet *models.Wallet) error {
	if err := FromContext(ctx, r.db).Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) List(ctx context.Context, limit, offset int) ([]models.Wallet, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.Wallet{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallets: %w", err)
	}
	var wallets []models.Wallet
	if err := q.Order("balance_cents DESC, id ASC").Limit(limit).Offset(offset).Find(&wallets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, total, nil
}

func (r *walletRepository) SumBalances(ctx context.Context) (int64, error) {
	var sum int64
	err := FromContext(ctx, r.db).Model(&models.Wallet{}).
		Select("COALESCE(SUM(balance_cents), 0)").Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return sum, nil
}

// CreateEntry appends a ledger line. A repeated (type, reference) pair
// returns ErrDuplicateEntry.
func (r *walletRepository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	if err := FromContext(ctx, r.db).Create(entry).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create wallet entry: %w", err)
	}
	return nil
}

func (r *walletRepository) EntryExists(ctx context.Context, entryType models.EntryType, reference string) (bool, error) {
	var n int64
	err := FromContext(ctx, r.db).Model(&models.WalletEntry{}).
		Where("type = ? AND reference = ?", entryType, reference).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check wallet entry: %w", err)
	}
	return n > 0, nil
}

func (r *walletRepository) ListEntries(ctx context.Context, merchantID uint, filter EntryFilter, limit, offset int) ([]models.WalletEntry, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.WalletEntry{}).Where("merchant_id = ?", merchantID)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallet entries: %w", err)
	}
	var entries []models.WalletEntry
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list wallet entries: %w", err)
	}
	return entries, total, nil
}
