package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category   string
	Query      string
	ActiveOnly bool
}

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Product, error)
	GetManyForUpdate(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	Update(ctx context.Context, product *models.Product) error
	SetStock(ctx context.Context, productID uint, stock int) error
	List(ctx context.Context, filter ProductFilter, limit, offset int) ([]models.Product, int64, error)
	ListLowStock(ctx context.Context) ([]models.Product, error)
	CountLowStock(ctx context.Context) (int64, error)
	AddAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, productID uint, limit, offset int) ([]models.InventoryAdjustment, int64, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	if err := FromContext(ctx, r.db).Create(product).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrDuplicateSKU
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	return r.first(FromContext(ctx, r.db), id)
}

func (r *productRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Product, error) {
	return r.first(forUpdate(FromContext(ctx, r.db)), id)
}

func (r *productRepository) first(db *gorm.DB, id uint) (*models.Product, error) {
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// GetManyForUpdate locks the rows in id order so concurrent orders touching
// the same products cannot deadlock.
func (r *productRepository) GetManyForUpdate(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	var products []models.Product
	err := forUpdate(FromContext(ctx, r.db)).Where("id IN ?", ids).Order("id ASC").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	out := make(map[uint]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *productRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var n int64
	err := FromContext(ctx, r.db).Model(&models.Product{}).
		Where("slug = ? AND id <> ?", slug, excludeID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return n > 0, nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	if err := FromContext(ctx, r.db).Save(product).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrDuplicateSKU
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *productRepository) SetStock(ctx context.Context, productID uint, stock int) error {
	if stock < 0 {
		return apperrors.ErrInsufficientStock
	}
	err := FromContext(ctx, r.db).Model(&models.Product{}).Where("id = ?", productID).
		Update("stock_on_hand", stock).Error
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	return nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter, limit, offset int) ([]models.Product, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.Product{})
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(likeCI("name")+" OR "+likeCI("sku"), p, p)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	var products []models.Product
	q = q.Order("name ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (r *productRepository) ListLowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := FromContext(ctx, r.db).
		Where("active = ? AND stock_on_hand <= low_stock_threshold", true).
		Order("stock_on_hand ASC, id ASC").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return products, nil
}

func (r *productRepository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := FromContext(ctx, r.db).Model(&models.Product{}).
		Where("active = ? AND stock_on_hand <= low_stock_threshold", true).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count low stock: %w", err)
	}
	return n, nil
}

func (r *productRepository) AddAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error {
	if err := FromContext(ctx, r.db).Create(adj).Error; err != nil {
		return fmt.Errorf("failed to record inventory adjustment: %w", err)
	}
	return nil
}

func (r *productRepository) ListAdjustments(ctx context.Context, productID uint, limit, offset int) ([]models.InventoryAdjustment, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.InventoryAdjustment{}).Where("product_id = ?", productID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count adjustments: %w", err)
	}
	var adjs []models.InventoryAdjustment
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&adjs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list adjustments: %w", err)
	}
	return adjs, total, nil
}
