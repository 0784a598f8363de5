package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type KYBStatus string

const (
	KYBStatusDraft     KYBStatus = "draft"
	KYBStatusSubmitted KYBStatus = "submitted"
	KYBStatusInReview  KYBStatus = "in_review"
	KYBStatusNeedsInfo KYBStatus = "needs_info"
	KYBStatusApproved  KYBStatus = "approved"
	KYBStatusRejected  KYBStatus = "rejected"
	KYBStatusSuspended KYBStatus = "suspended"
)

var kybTransitions = map[KYBStatus][]KYBStatus{
	KYBStatusDraft:     {KYBStatusSubmitted},
	KYBStatusNeedsInfo: {KYBStatusSubmitted},
	KYBStatusSubmitted: {KYBStatusInReview, KYBStatusApproved, KYBStatusRejected, KYBStatusNeedsInfo},
	KYBStatusInReview:  {KYBStatusApproved, KYBStatusRejected, KYBStatusNeedsInfo},
	KYBStatusApproved:  {KYBStatusSuspended},
	KYBStatusSuspended: {KYBStatusApproved},
}

// CanTransition reports whether a merchant may move from s to next.
func (s KYBStatus) CanTransition(next KYBStatus) bool {
	for _, allowed := range kybTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether the merchant may still change their profile.
func (s KYBStatus) Editable() bool {
	return s == KYBStatusDraft || s == KYBStatusNeedsInfo
}

func (s KYBStatus) Valid() bool {
	switch s {
	case KYBStatusDraft, KYBStatusSubmitted, KYBStatusInReview, KYBStatusNeedsInfo,
		KYBStatusApproved, KYBStatusRejected, KYBStatusSuspended:
		return true
	}
	return false
}

const DefaultPricingTier = "standard"

// Merchant is a white-label storefront operator.
type Merchant struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	AuthUserID   string `gorm:"uniqueIndex;not null;size:64" json:"auth_user_id"`
	Email        string `gorm:"index;size:255" json:"email"`
	LegalName    string `gorm:"size:255" json:"legal_name"`
	DBAName      string `gorm:"size:255" json:"dba_name"`
	BrandName    string `gorm:"size:255" json:"brand_name"`
	EIN          string `gorm:"size:20" json:"ein"`
	BusinessType string `gorm:"size:50" json:"business_type"`
	Phone        string `gorm:"size:32" json:"phone"`
	Website      string `gorm:"size:255" json:"website"`
	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:50" json:"state"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:2;default:'US'" json:"country"`

	KYBStatus      KYBStatus  `gorm:"type:varchar(20);not null;default:'draft';index" json:"kyb_status"`
	KYBNotes       string     `gorm:"type:text" json:"kyb_notes"`
	KYBSubmittedAt *time.Time `json:"kyb_submitted_at,omitempty"`
	KYBDecidedAt   *time.Time `json:"kyb_decided_at,omitempty"`
	KYBReviewerID  *uint      `json:"kyb_reviewer_id,omitempty"`

	PricingTier         string `gorm:"size:50;not null;default:'standard'" json:"pricing_tier"`
	OnboardingCompleted bool   `gorm:"not null;default:false" json:"onboarding_completed"`
	MercuryCustomerID   string `gorm:"size:64" json:"-"`

	Documents []KYBDocument `gorm:"foreignKey:MerchantID" json:"documents,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (m *Merchant) BeforeSave(tx *gorm.DB) error {
	m.Email = NormalizeEmail(m.Email)
	m.EIN = strings.TrimSpace(m.EIN)
	return nil
}

// IsApproved reports whether the merchant may transact.
func (m *Merchant) IsApproved() bool {
	return m.KYBStatus == KYBStatusApproved
}

// ProfileComplete reports whether every field required for KYB is present.
func (m *Merchant) ProfileComplete() bool {
	for _, v := range []string{m.LegalName, m.EIN, m.BusinessType, m.Phone, m.AddressLine1, m.City, m.State, m.PostalCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// DisplayName returns the customer-facing name.
func (m *Merchant) DisplayName() string {
	switch {
	case m.BrandName != "":
		return m.BrandName
	case m.DBAName != "":
		return m.DBAName
	default:
		return m.LegalName
	}
}
