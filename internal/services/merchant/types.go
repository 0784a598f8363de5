package merchant

import (
	"time"

	"portal/internal/models"
)

// OnboardingInput is the business profile. Fields may be saved partially;
// the profile counts as complete once every required field is present.
type OnboardingInput struct {
	LegalName    string `json:"legal_name" validate:"max=255"`
	DBAName      string `json:"dba_name" validate:"max=255"`
	BrandName    string `json:"brand_name" validate:"max=255"`
	EIN          string `json:"ein" validate:"omitempty,max=20"`
	BusinessType string `json:"business_type" validate:"omitempty,oneof=llc corporation s_corporation partnership sole_proprietorship nonprofit"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	Website      string `json:"website" validate:"omitempty,url,max=255"`
	AddressLine1 string `json:"address_line1" validate:"max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	City         string `json:"city" validate:"max=100"`
	State        string `json:"state" validate:"max=50"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Country      string `json:"country" validate:"omitempty,len=2"`
}

type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionRequestInfo Decision = "request_info"
)

func (d Decision) status() (models.KYBStatus, bool) {
	switch d {
	case DecisionApprove:
		return models.KYBStatusApproved, true
	case DecisionReject:
		return models.KYBStatusRejected, true
	case DecisionRequestInfo:
		return models.KYBStatusNeedsInfo, true
	}
	return "", false
}

type DecisionInput struct {
	Decision Decision `json:"decision" validate:"required,oneof=approve reject request_info"`
	Notes    string   `json:"notes" validate:"max=2000"`
}

// KYBView is what a merchant sees of their verification.
type KYBView struct {
	Status      models.KYBStatus      `json:"status"`
	Notes       string                `json:"notes,omitempty"`
	SubmittedAt *time.Time            `json:"submitted_at,omitempty"`
	DecidedAt   *time.Time            `json:"decided_at,omitempty"`
	Onboarded   bool                  `json:"onboarding_completed"`
	Documents   []models.KYBDocument  `json:"documents"`
	Missing     []models.DocumentType `json:"missing_documents"`
}
