package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type AdminRole string

const (
	AdminRoleOwner   AdminRole = "owner"
	AdminRoleAdmin   AdminRole = "admin"
	AdminRoleOps     AdminRole = "ops"
	AdminRoleSupport AdminRole = "support"
)

// Valid reports whether r is a known role.
func (r AdminRole) Valid() bool {
	switch r {
	case AdminRoleOwner, AdminRoleAdmin, AdminRoleOps, AdminRoleSupport:
		return true
	}
	return false
}

type AdminStatus string

const (
	AdminStatusActive   AdminStatus = "active"
	AdminStatusInvited  AdminStatus = "invited"
	AdminStatusDisabled AdminStatus = "disabled"
)

// AdminUser is a member of the internal operations team.
type AdminUser struct {
	ID           uint        `gorm:"primarykey" json:"id"`
	Email        string      `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name         string      `gorm:"size:255" json:"name"`
	Role         AdminRole   `gorm:"type:varchar(20);not null;default:'support'" json:"role"`
	Status       AdminStatus `gorm:"type:varchar(20);not null;default:'invited'" json:"status"`
	TokenVersion int         `gorm:"not null;default:1" json:"-"`
	InvitedByID  *uint       `json:"invited_by_id,omitempty"`
	LastLoginAt  *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *AdminUser) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// CanSignIn reports whether the admin may request a login code.
func (u *AdminUser) CanSignIn() bool {
	return u.Status == AdminStatusActive || u.Status == AdminStatusInvited
}

// AdminLoginCode is a single-use emailed code. Only its bcrypt hash is stored.
type AdminLoginCode struct {
	ID          uint       `gorm:"primarykey"`
	AdminUserID uint       `gorm:"index;not null"`
	CodeHash    string     `gorm:"not null"`
	ExpiresAt   time.Time  `gorm:"index;not null"`
	Attempts    int        `gorm:"not null;default:0"`
	ConsumedAt  *time.Time
	RequestedIP string `gorm:"size:64"`
	CreatedAt   time.Time
}

// Usable reports whether the code can still be checked at now.
func (c *AdminLoginCode) Usable(now time.Time, maxAttempts int) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt) && c.Attempts < maxAttempts
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
