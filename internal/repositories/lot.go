package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

type LotRepository interface {
	Create(ctx context.Context, lot *models.Lot) error
	GetByID(ctx context.Context, id uint) (*models.Lot, error)
	ListByProduct(ctx context.Context, productID uint) ([]models.Lot, error)
	Update(ctx context.Context, lot *models.Lot) error
	LatestReleasedWithCOA(ctx context.Context, productID uint) (*models.Lot, error)
	ProductIDsWithCOA(ctx context.Context) (map[uint]bool, error)
}

type lotRepository struct {
	db *gorm.DB
}

func NewLotRepository(db *gorm.DB) LotRepository {
	return &lotRepository{db: db}
}

func (r *lotRepository) Create(ctx context.Context, lot *models.Lot) error {
	if err := FromContext(ctx, r.db).Create(lot).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrDuplicateLot
		}
		return fmt.Errorf("failed to create lot: %w", err)
	}
	return nil
}

func (r *lotRepository) GetByID(ctx context.Context, id uint) (*models.Lot, error) {
	var lot models.Lot
	if err := FromContext(ctx, r.db).First(&lot, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return &lot, nil
}

func (r *lotRepository) ListByProduct(ctx context.Context, productID uint) ([]models.Lot, error) {
	var lots []models.Lot
	err := FromContext(ctx, r.db).Where("product_id = ?", productID).
		Order("manufactured_at DESC, id DESC").Find(&lots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return lots, nil
}

func (r *lotRepository) Update(ctx context.Context, lot *models.Lot) error {
	if err := FromContext(ctx, r.db).Save(lot).Error; err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}
	return nil
}

func (r *lotRepository) LatestReleasedWithCOA(ctx context.Context, productID uint) (*models.Lot, error) {
	var lot models.Lot
	err := FromContext(ctx, r.db).
		Where("product_id = ? AND released = ? AND coa_path <> ''", productID, true).
		Order("manufactured_at DESC, id DESC").First(&lot).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrCOAMissing
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return &lot, nil
}

func (r *lotRepository) ProductIDsWithCOA(ctx context.Context) (map[uint]bool, error) {
	var ids []uint
	err := FromContext(ctx, r.db).Model(&models.Lot{}).
		Where("released = ? AND coa_path <> ''", true).
		Distinct().Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products with coa: %w", err)
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
