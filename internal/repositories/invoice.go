package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

type InvoiceFilter struct {
	MerchantID uint
	Status     models.InvoiceStatus
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.MercuryInvoice) error
	GetByID(ctx context.Context, id uint) (*models.MercuryInvoice, error)
	GetByMercuryID(ctx context.Context, mercuryID string) (*models.MercuryInvoice, error)
	GetForUpdate(ctx context.Context, id uint) (*models.MercuryInvoice, error)
	Update(ctx context.Context, inv *models.MercuryInvoice) error
	List(ctx context.Context, filter InvoiceFilter, limit, offset int) ([]models.MercuryInvoice, int64, error)
	ListSyncable(ctx context.Context, limit int) ([]models.MercuryInvoice, error)
	SumOpen(ctx context.Context, merchantID uint) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *models.MercuryInvoice) error {
	if err := FromContext(ctx, r.db).Create(inv).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrInvalidRequest.WithMessage("invoice already recorded")
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.MercuryInvoice, error) {
	return r.first(FromContext(ctx, r.db), "id = ?", id)
}

func (r *invoiceRepository) GetByMercuryID(ctx context.Context, mercuryID string) (*models.MercuryInvoice, error) {
	return r.first(FromContext(ctx, r.db), "mercury_invoice_id = ?", mercuryID)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id uint) (*models.MercuryInvoice, error) {
	return r.first(forUpdate(FromContext(ctx, r.db)), "id = ?", id)
}

func (r *invoiceRepository) first(db *gorm.DB, query string, args ...interface{}) (*models.MercuryInvoice, error) {
	var inv models.MercuryInvoice
	if err := db.Where(query, args...).First(&inv).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *models.MercuryInvoice) error {
	if err := FromContext(ctx, r.db).Save(inv).Error; err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter, limit, offset int) ([]models.MercuryInvoice, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.MercuryInvoice{})
	if filter.MerchantID != 0 {
		q = q.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	var list []models.MercuryInvoice
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	return list, total, nil
}

// ListSyncable returns invoices that may still change upstream, least
// recently synced first.
func (r *invoiceRepository) ListSyncable(ctx context.Context, limit int) ([]models.MercuryInvoice, error) {
	var list []models.MercuryInvoice
	err := FromContext(ctx, r.db).
		Where("status IN ?", []models.InvoiceStatus{models.InvoiceOpen, models.InvoiceOverdue}).
		Order("last_synced_at ASC, id ASC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable invoices: %w", err)
	}
	return list, nil
}

// SumOpen totals unpaid invoices; merchantID zero sums across merchants.
func (r *invoiceRepository) SumOpen(ctx context.Context, merchantID uint) (int64, error) {
	q := FromContext(ctx, r.db).Model(&models.MercuryInvoice{}).
		Where("status IN ?", []models.InvoiceStatus{models.InvoiceOpen, models.InvoiceOverdue})
	if merchantID != 0 {
		q = q.Where("merchant_id = ?", merchantID)
	}
	var sum int64
	if err := q.Select("COALESCE(SUM(amount_cents), 0)").Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("failed to sum open invoices: %w", err)
	}
	return sum, nil
}
