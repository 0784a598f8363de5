package models

import "time"

type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceOverdue   InvoiceStatus = "overdue"
)

// Closed reports whether the invoice can no longer change.
func (s InvoiceStatus) Closed() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceOpen, InvoicePaid, InvoiceCancelled, InvoiceOverdue:
		return true
	}
	return false
}

// MercuryInvoice mirrors an accounts-receivable invoice held in Mercury.
// A paid invoice credits the merchant wallet once, stamped by CreditedAt.
type MercuryInvoice struct {
	ID               uint          `gorm:"primarykey" json:"id"`
	MerchantID       uint          `gorm:"index;not null" json:"merchant_id"`
	MercuryInvoiceID string        `gorm:"uniqueIndex;not null;size:128" json:"mercury_invoice_id"`
	AmountCents      int64         `gorm:"not null;check:amount_cents > 0" json:"amount_cents"`
	Status           InvoiceStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Memo             string        `gorm:"size:255" json:"memo"`
	DueDate          time.Time     `json:"due_date"`
	HostedURL        string        `json:"hosted_url"`
	CreatedByID      *uint         `json:"created_by_id,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CreditedAt       *time.Time    `json:"credited_at,omitempty"`
	LastSyncedAt     *time.Time    `json:"last_synced_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
