package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

type WithdrawalFilter struct {
	MerchantID uint
	Status     models.WithdrawalStatus
}

type WithdrawalRepository interface {
	Create(ctx context.Context, w *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id uint) (*models.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, id uint) (*models.WithdrawalRequest, error)
	Update(ctx context.Context, w *models.WithdrawalRequest) error
	List(ctx context.Context, filter WithdrawalFilter, limit, offset int) ([]models.WithdrawalRequest, int64, error)
	SumPending(ctx context.Context) (count int64, cents int64, err error)
}

type withdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(ctx context.Context, w *models.WithdrawalRequest) error {
	if err := FromContext(ctx, r.db).Create(w).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	return r.first(FromContext(ctx, r.db), id)
}

func (r *withdrawalRepository) GetForUpdate(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	return r.first(forUpdate(FromContext(ctx, r.db)), id)
}

func (r *withdrawalRepository) first(db *gorm.DB, id uint) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	if err := db.First(&w, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

func (r *withdrawalRepository) Update(ctx context.Context, w *models.WithdrawalRequest) error {
	if err := FromContext(ctx, r.db).Save(w).Error; err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	return nil
}

func (r *withdrawalRepository) List(ctx context.Context, filter WithdrawalFilter, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.WithdrawalRequest{})
	if filter.MerchantID != 0 {
		q = q.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}
	var list []models.WithdrawalRequest
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return list, total, nil
}

// SumPending reports open requests awaiting payout.
func (r *withdrawalRepository) SumPending(ctx context.Context) (int64, int64, error) {
	var row struct {
		Count int64
		Cents int64
	}
	err := FromContext(ctx, r.db).Model(&models.WithdrawalRequest{}).
		Where("status IN ?", []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalApproved}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS cents").Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum pending withdrawals: %w", err)
	}
	return row.Count, row.Cents, nil
}
