package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalCancelled WithdrawalStatus = "cancelled"
)

// Open reports whether the withdrawal still holds funds.
func (s WithdrawalStatus) Open() bool {
	return s == WithdrawalPending || s == WithdrawalApproved
}

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected, WithdrawalCompleted, WithdrawalCancelled:
		return true
	}
	return false
}

// WithdrawalRequest moves wallet funds back to the merchant's bank account.
type WithdrawalRequest struct {
	ID              uint             `gorm:"primarykey" json:"id"`
	MerchantID      uint             `gorm:"index;not null" json:"merchant_id"`
	AmountCents     int64            `gorm:"not null;check:amount_cents > 0" json:"amount_cents"`
	Destination     string           `gorm:"size:255;not null" json:"destination"`
	Status          WithdrawalStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ReviewerID      *uint            `json:"reviewer_id,omitempty"`
	RejectionReason string           `gorm:"size:255" json:"rejection_reason,omitempty"`
	PayoutReference string           `gorm:"size:128" json:"payout_reference,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
