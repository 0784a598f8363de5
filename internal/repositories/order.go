package repositories

import (
	"context"
	"fmt"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

// OrderFilter narrows order listings. MerchantID zero means all merchants.
type OrderFilter struct {
	MerchantID uint
	Status     models.OrderStatus
	Query      string
	From       *time.Time
	To         *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetForMerchant(ctx context.Context, merchantID, id uint) (*models.Order, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, merchantID uint, key string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error)
	ListAwaitingFunds(ctx context.Context, merchantID uint) ([]models.Order, error)
	CountByStatus(ctx context.Context, merchantID uint) (map[models.OrderStatus]int64, error)
	SumAwaitingFunds(ctx context.Context, merchantID uint) (int64, error)
	SpendSince(ctx context.Context, merchantID uint, since time.Time) (int64, error)
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order together with its items.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := FromContext(ctx, r.db).Omit("Shipment").Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	return r.first(withDetails(FromContext(ctx, r.db)), "id = ?", id)
}

func (r *orderRepository) GetForMerchant(ctx context.Context, merchantID, id uint) (*models.Order, error) {
	return r.first(withDetails(FromContext(ctx, r.db)), "id = ? AND merchant_id = ?", id, merchantID)
}

// GetForUpdate locks the order row. Items are loaded for restocking.
func (r *orderRepository) GetForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	db := FromContext(ctx, r.db).Preload("Items").Preload("Shipment")
	return r.first(forUpdate(db), "id = ?", id)
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, merchantID uint, key string) (*models.Order, error) {
	return r.first(withDetails(FromContext(ctx, r.db)), "merchant_id = ? AND idempotency_key = ?", merchantID, key)
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Preload("Shipment")
}

func (r *orderRepository) first(db *gorm.DB, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	if err := db.Where(query, args...).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// Update saves the order columns only; items are immutable once written.
func (r *orderRepository) Update(ctx context.Context, order *models.Order) error {
	if err := FromContext(ctx, r.db).Omit("Items", "Shipment").Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.Order{})
	if filter.MerchantID != 0 {
		q = q.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(likeCI("number")+" OR "+likeCI("ship_to_name")+" OR "+likeCI("external_ref"), p, p, p)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var orders []models.Order
	err := q.Preload("Items").Preload("Shipment").
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ListAwaitingFunds returns unpaid orders oldest first, the settlement order.
func (r *orderRepository) ListAwaitingFunds(ctx context.Context, merchantID uint) ([]models.Order, error) {
	var orders []models.Order
	err := forUpdate(FromContext(ctx, r.db).Preload("Items")).
		Where("merchant_id = ? AND status = ?", merchantID, models.OrderStatusAwaitingFunds).
		Order("created_at ASC, id ASC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list awaiting orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context, merchantID uint) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	q := FromContext(ctx, r.db).Model(&models.Order{})
	if merchantID != 0 {
		q = q.Where("merchant_id = ?", merchantID)
	}
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	out := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *orderRepository) SumAwaitingFunds(ctx context.Context, merchantID uint) (int64, error) {
	var sum int64
	err := FromContext(ctx, r.db).Model(&models.Order{}).
		Where("merchant_id = ? AND status = ?", merchantID, models.OrderStatusAwaitingFunds).
		Select("COALESCE(SUM(total_cents), 0)").Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum awaiting orders: %w", err)
	}
	return sum, nil
}

// SpendSince totals charged orders paid at or after since.
func (r *orderRepository) SpendSince(ctx context.Context, merchantID uint, since time.Time) (int64, error) {
	var sum int64
	err := FromContext(ctx, r.db).Model(&models.Order{}).
		Where("merchant_id = ? AND paid_at >= ? AND status IN ?", merchantID, since, []models.OrderStatus{
			models.OrderStatusPaid, models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered,
		}).
		Select("COALESCE(SUM(total_cents), 0)").Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum spend: %w", err)
	}
	return sum, nil
}

func (r *orderRepository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	if err := FromContext(ctx, r.db).Create(shipment).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrInvalidOrderTransition
		}
		return fmt.Errorf("failed to save shipment: %w", err)
	}
	return nil
}
