package repositories

import (
	"context"
	"fmt"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

// MerchantFilter narrows admin merchant listings.
type MerchantFilter struct {
	Status models.KYBStatus
	Query  string
}

type MerchantRepository interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	GetByID(ctx context.Context, id uint) (*models.Merchant, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Merchant, error)
	GetByAuthUserID(ctx context.Context, authUserID string) (*models.Merchant, error)
	Update(ctx context.Context, merchant *models.Merchant) error
	List(ctx context.Context, filter MerchantFilter, limit, offset int) ([]models.Merchant, int64, error)
	CountByKYBStatus(ctx context.Context) (map[models.KYBStatus]int64, error)

	AddDocument(ctx context.Context, doc *models.KYBDocument) error
	ListDocuments(ctx context.Context, merchantID uint) ([]models.KYBDocument, error)
}

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) Create(ctx context.Context, merchant *models.Merchant) error {
	if err := FromContext(ctx, r.db).Create(merchant).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrMerchantExists
		}
		return fmt.Errorf("failed to create merchant: %w", err)
	}
	return nil
}

func (r *merchantRepository) GetByID(ctx context.Context, id uint) (*models.Merchant, error) {
	return r.first(FromContext(ctx, r.db), "id = ?", id)
}

func (r *merchantRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Merchant, error) {
	return r.first(forUpdate(FromContext(ctx, r.db)), "id = ?", id)
}

func (r *merchantRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Merchant, error) {
	return r.first(FromContext(ctx, r.db), "auth_user_id = ?", authUserID)
}

func (r *merchantRepository) first(db *gorm.DB, query string, args ...interface{}) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := db.Where(query, args...).First(&merchant).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &merchant, nil
}

func (r *merchantRepository) Update(ctx context.Context, merchant *models.Merchant) error {
	if err := FromContext(ctx, r.db).Omit("Documents").Save(merchant).Error; err != nil {
		return fmt.Errorf("failed to update merchant: %w", err)
	}
	return nil
}

func (r *merchantRepository) List(ctx context.Context, filter MerchantFilter, limit, offset int) ([]models.Merchant, int64, error) {
	q := FromContext(ctx, r.db).Model(&models.Merchant{})
	if filter.Status != "" {
		q = q.Where("kyb_status = ?", filter.Status)
	}
	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(
			likeCI("legal_name")+" OR "+likeCI("dba_name")+" OR "+likeCI("brand_name")+" OR "+likeCI("email"),
			p, p, p, p,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count merchants: %w", err)
	}
	var merchants []models.Merchant
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&merchants).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list merchants: %w", err)
	}
	return merchants, total, nil
}

func (r *merchantRepository) CountByKYBStatus(ctx context.Context) (map[models.KYBStatus]int64, error) {
	var rows []struct {
		KYBStatus models.KYBStatus
		Count     int64
	}
	err := FromContext(ctx, r.db).Model(&models.Merchant{}).
		Select("kyb_status, COUNT(*) AS count").Group("kyb_status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count merchants by status: %w", err)
	}
	out := make(map[models.KYBStatus]int64, len(rows))
	for _, row := range rows {
		out[row.KYBStatus] = row.Count
	}
	return out, nil
}

func (r *merchantRepository) AddDocument(ctx context.Context, doc *models.KYBDocument) error {
	if err := FromContext(ctx, r.db).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to save kyb document: %w", err)
	}
	return nil
}

func (r *merchantRepository) ListDocuments(ctx context.Context, merchantID uint) ([]models.KYBDocument, error) {
	var docs []models.KYBDocument
	err := FromContext(ctx, r.db).Where("merchant_id = ?", merchantID).Order("created_at ASC, id ASC").Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list kyb documents: %w", err)
	}
	return docs, nil
}
