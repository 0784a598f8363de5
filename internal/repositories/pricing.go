package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PricingRepository interface {
	GetTier(ctx context.Context, name string) (*models.PricingTier, error)
	ListTiers(ctx context.Context) ([]models.PricingTier, error)
	UpsertTier(ctx context.Context, tier *models.PricingTier) error

	ListMerchantPrices(ctx context.Context, merchantID uint) ([]models.MerchantPrice, error)
	UpsertMerchantPrice(ctx context.Context, price *models.MerchantPrice) error
	DeleteMerchantPrice(ctx context.Context, merchantID, productID uint) error

	ListListings(ctx context.Context, merchantID uint) ([]models.MerchantListing, error)
	UpsertListing(ctx context.Context, listing *models.MerchantListing) error
}

type pricingRepository struct {
	db *gorm.DB
}

func NewPricingRepository(db *gorm.DB) PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) GetTier(ctx context.Context, name string) (*models.PricingTier, error) {
	var tier models.PricingTier
	if err := FromContext(ctx, r.db).Where("name = ?", name).First(&tier).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to get pricing tier: %w", err)
	}
	return &tier, nil
}

func (r *pricingRepository) ListTiers(ctx context.Context) ([]models.PricingTier, error) {
	var tiers []models.PricingTier
	if err := FromContext(ctx, r.db).Order("discount_bps ASC, name ASC").Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to list pricing tiers: %w", err)
	}
	return tiers, nil
}

func (r *pricingRepository) UpsertTier(ctx context.Context, tier *models.PricingTier) error {
	err := FromContext(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"discount_bps", "description", "updated_at"}),
	}).Create(tier).Error
	if err != nil {
		return fmt.Errorf("failed to save pricing tier: %w", err)
	}
	return nil
}

func (r *pricingRepository) ListMerchantPrices(ctx context.Context, merchantID uint) ([]models.MerchantPrice, error) {
	var prices []models.MerchantPrice
	if err := FromContext(ctx, r.db).Where("merchant_id = ?", merchantID).Order("product_id ASC").Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to list merchant prices: %w", err)
	}
	return prices, nil
}

func (r *pricingRepository) UpsertMerchantPrice(ctx context.Context, price *models.MerchantPrice) error {
	err := FromContext(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_cents", "updated_at"}),
	}).Create(price).Error
	if err != nil {
		return fmt.Errorf("failed to save merchant price: %w", err)
	}
	return nil
}

func (r *pricingRepository) DeleteMerchantPrice(ctx context.Context, merchantID, productID uint) error {
	err := FromContext(ctx, r.db).
		Where("merchant_id = ? AND product_id = ?", merchantID, productID).
		Delete(&models.MerchantPrice{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete merchant price: %w", err)
	}
	return nil
}

func (r *pricingRepository) ListListings(ctx context.Context, merchantID uint) ([]models.MerchantListing, error) {
	var listings []models.MerchantListing
	if err := FromContext(ctx, r.db).Where("merchant_id = ?", merchantID).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

func (r *pricingRepository) UpsertListing(ctx context.Context, listing *models.MerchantListing) error {
	err := FromContext(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"retail_price_cents", "active", "updated_at"}),
	}).Create(listing).Error
	if err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}
