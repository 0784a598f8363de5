package repositories

import (
	"context"
	"fmt"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"gorm.io/gorm"
)

type AdminUserRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetByID(ctx context.Context, id uint) (*models.AdminUser, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	List(ctx context.Context) ([]models.AdminUser, error)
	Update(ctx context.Context, admin *models.AdminUser) error
	CountActiveOwners(ctx context.Context) (int64, error)
	LockActiveOwners(ctx context.Context) ([]uint, error)
	GetTokenVersion(ctx context.Context, id uint) (int, error)
	IncrementTokenVersion(ctx context.Context, id uint) error

	CreateLoginCode(ctx context.Context, code *models.AdminLoginCode) error
	InvalidateLoginCodes(ctx context.Context, adminID uint, now time.Time) error
	LatestLoginCode(ctx context.Context, adminID uint) (*models.AdminLoginCode, error)
	ClaimCodeAttempt(ctx context.Context, codeID uint, maxAttempts int) (bool, error)
	ConsumeLoginCode(ctx context.Context, codeID uint, now time.Time) (bool, error)
	DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, error)
}

type adminUserRepository struct {
	db *gorm.DB
}

func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

func (r *adminUserRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	if err := FromContext(ctx, r.db).Create(admin).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.ErrAdminExists
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

func (r *adminUserRepository) GetByID(ctx context.Context, id uint) (*models.AdminUser, error) {
	return r.byID(FromContext(ctx, r.db), id)
}

func (r *adminUserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.AdminUser, error) {
	return r.byID(forUpdate(FromContext(ctx, r.db)), id)
}

func (r *adminUserRepository) byID(db *gorm.DB, id uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := db.First(&admin, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &admin, nil
}

func (r *adminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := FromContext(ctx, r.db).Where("email = ?", models.NormalizeEmail(email)).First(&admin).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &admin, nil
}

func (r *adminUserRepository) List(ctx context.Context) ([]models.AdminUser, error) {
	var admins []models.AdminUser
	if err := FromContext(ctx, r.db).Order("created_at ASC, id ASC").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	return admins, nil
}

func (r *adminUserRepository) Update(ctx context.Context, admin *models.AdminUser) error {
	if err := FromContext(ctx, r.db).Save(admin).Error; err != nil {
		return fmt.Errorf("failed to update admin user: %w", err)
	}
	return nil
}

func (r *adminUserRepository) CountActiveOwners(ctx context.Context) (int64, error) {
	var n int64
	err := FromContext(ctx, r.db).Model(&models.AdminUser{}).
		Where("role = ? AND status = ?", models.AdminRoleOwner, models.AdminStatusActive).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return n, nil
}

// LockActiveOwners locks the active owner rows in id order and returns
// their ids.
func (r *adminUserRepository) LockActiveOwners(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := forUpdate(FromContext(ctx, r.db)).Model(&models.AdminUser{}).
		Where("role = ? AND status = ?", models.AdminRoleOwner, models.AdminStatusActive).
		Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock owners: %w", err)
	}
	return ids, nil
}

func (r *adminUserRepository) GetTokenVersion(ctx context.Context, id uint) (int, error) {
	admin, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return admin.TokenVersion, nil
}

func (r *adminUserRepository) IncrementTokenVersion(ctx context.Context, id uint) error {
	res := FromContext(ctx, r.db).Model(&models.AdminUser{}).Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to bump token version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAdminNotFound
	}
	return nil
}

func (r *adminUserRepository) CreateLoginCode(ctx context.Context, code *models.AdminLoginCode) error {
	if err := FromContext(ctx, r.db).Create(code).Error; err != nil {
		return fmt.Errorf("failed to create login code: %w", err)
	}
	return nil
}

// InvalidateLoginCodes consumes every outstanding code for the admin.
func (r *adminUserRepository) InvalidateLoginCodes(ctx context.Context, adminID uint, now time.Time) error {
	err := FromContext(ctx, r.db).Model(&models.AdminLoginCode{}).
		Where("admin_user_id = ? AND consumed_at IS NULL", adminID).
		Update("consumed_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate login codes: %w", err)
	}
	return nil
}

// LatestLoginCode returns the newest unconsumed code, expired or not.
func (r *adminUserRepository) LatestLoginCode(ctx context.Context, adminID uint) (*models.AdminLoginCode, error) {
	var code models.AdminLoginCode
	err := FromContext(ctx, r.db).
		Where("admin_user_id = ? AND consumed_at IS NULL", adminID).
		Order("created_at DESC, id DESC").
		First(&code).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to get login code: %w", err)
	}
	return &code, nil
}

// ClaimCodeAttempt records one verification attempt in a single UPDATE. It
// reports false when the code is consumed or already at maxAttempts, so
// concurrent guesses can never exceed the cap.
func (r *adminUserRepository) ClaimCodeAttempt(ctx context.Context, codeID uint, maxAttempts int) (bool, error) {
	res := FromContext(ctx, r.db).Model(&models.AdminLoginCode{}).
		Where("id = ? AND consumed_at IS NULL AND attempts < ?", codeID, maxAttempts).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("failed to record code attempt: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ConsumeLoginCode marks the code used. It reports false if another request
// consumed it first.
func (r *adminUserRepository) ConsumeLoginCode(ctx context.Context, codeID uint, now time.Time) (bool, error) {
	res := FromContext(ctx, r.db).Model(&models.AdminLoginCode{}).
		Where("id = ? AND consumed_at IS NULL", codeID).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume login code: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *adminUserRepository) DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, error) {
	res := FromContext(ctx, r.db).Where("expires_at < ?", before).Delete(&models.AdminLoginCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
