package models

import "time"

const (
	WalletStatusActive = "active"
	WalletStatusLocked = "locked"
	DefaultCurrency    = "USD"
)

// Wallet is a merchant's prepaid balance. HeldCents is money reserved for
// pending withdrawals and already removed from BalanceCents.
type Wallet struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	MerchantID   uint      `gorm:"uniqueIndex;not null" json:"merchant_id"`
	BalanceCents int64     `gorm:"not null;default:0;check:balance_cents >= 0" json:"balance_cents"`
	HeldCents    int64     `gorm:"not null;default:0;check:held_cents >= 0" json:"held_cents"`
	Currency     string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Status       string    `gorm:"size:20;not null;default:'active'" json:"status"`
	StatusReason string    `gorm:"size:255" json:"status_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type EntryType string

const (
	EntryInvoiceCredit     EntryType = "invoice_credit"
	EntryCardTopup         EntryType = "card_topup"
	EntryOrderDebit        EntryType = "order_debit"
	EntryOrderRefund       EntryType = "order_refund"
	EntryWithdrawalHold    EntryType = "withdrawal_hold"
	EntryWithdrawalRelease EntryType = "withdrawal_release"
	EntryAdjustment        EntryType = "adjustment"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryInvoiceCredit, EntryCardTopup, EntryOrderDebit, EntryOrderRefund,
		EntryWithdrawalHold, EntryWithdrawalRelease, EntryAdjustment:
		return true
	}
	return false
}

// WalletEntry is one immutable ledger line. Reference is unique per type,
// which makes credits from external systems idempotent.
type WalletEntry struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	WalletID          uint      `gorm:"index;not null" json:"wallet_id"`
	MerchantID        uint      `gorm:"index;not null" json:"merchant_id"`
	Type              EntryType `gorm:"type:varchar(30);not null;uniqueIndex:idx_wallet_entry_ref" json:"type"`
	Reference         string    `gorm:"size:128;not null;uniqueIndex:idx_wallet_entry_ref" json:"reference"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`
	BalanceAfterCents int64     `gorm:"not null" json:"balance_after_cents"`
	Memo              string    `gorm:"size:255" json:"memo"`
	Metadata          JSON      `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}
