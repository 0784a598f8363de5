package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Product is a catalog item stocked in the warehouse.
type Product struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	SKU               string    `gorm:"uniqueIndex;not null;size:64" json:"sku"`
	Name              string    `gorm:"not null;size:255" json:"name"`
	Slug              string    `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description       string    `gorm:"type:text" json:"description"`
	Category          string    `gorm:"size:100;index" json:"category"`
	Unit              string    `gorm:"size:50" json:"unit"`
	BasePriceCents    int64     `gorm:"not null;check:base_price_cents >= 0" json:"base_price_cents"`
	MSRPCents         int64     `gorm:"column:msrp_cents;not null;default:0;check:msrp_cents >= 0" json:"msrp_cents"`
	StockOnHand       int       `gorm:"not null;default:0;check:stock_on_hand >= 0" json:"stock_on_hand"`
	LowStockThreshold int       `gorm:"not null" json:"low_stock_threshold"`
	Active            bool      `gorm:"not null;index" json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SKU = NormalizeSKU(p.SKU)
	return nil
}

// NormalizeSKU upper-cases and trims a SKU so uniqueness is case-insensitive.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityLowStock   Availability = "low_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
)

// Availability buckets the stock level for merchant-facing listings.
func (p *Product) Availability() Availability {
	switch {
	case p.StockOnHand <= 0:
		return AvailabilityOutOfStock
	case p.StockOnHand <= p.LowStockThreshold:
		return AvailabilityLowStock
	default:
		return AvailabilityInStock
	}
}

// InventoryAdjustment records every stock movement.
type InventoryAdjustment struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ProductID   uint      `gorm:"index;not null" json:"product_id"`
	Delta       int       `gorm:"not null" json:"delta"`
	StockAfter  int       `gorm:"not null" json:"stock_after"`
	Reason      string    `gorm:"size:255" json:"reason"`
	AdminUserID *uint     `json:"admin_user_id,omitempty"`
	OrderID     *uint     `gorm:"index" json:"order_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PricingTier discounts base prices for every merchant on the tier.
type PricingTier struct {
	Name        string    `gorm:"primaryKey;size:50" json:"name"`
	DiscountBPS int       `gorm:"not null;default:0;check:discount_bps >= 0 AND discount_bps <= 10000" json:"discount_bps"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MerchantPrice overrides the tier price for one merchant and product.
type MerchantPrice struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	MerchantID uint      `gorm:"uniqueIndex:idx_merchant_price;not null" json:"merchant_id"`
	ProductID  uint      `gorm:"uniqueIndex:idx_merchant_price;not null" json:"product_id"`
	PriceCents int64     `gorm:"not null;check:price_cents >= 0" json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MerchantListing is a merchant's storefront entry for a product.
type MerchantListing struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	MerchantID       uint      `gorm:"uniqueIndex:idx_merchant_listing;not null" json:"merchant_id"`
	ProductID        uint      `gorm:"uniqueIndex:idx_merchant_listing;not null" json:"product_id"`
	RetailPriceCents int64     `gorm:"not null;check:retail_price_cents >= 0" json:"retail_price_cents"`
	Active           bool      `gorm:"not null" json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Lot is one manufactured batch of a product with its lab certificate.
type Lot struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	ProductID      uint      `gorm:"uniqueIndex:idx_product_lot;not null" json:"product_id"`
	LotNumber      string    `gorm:"uniqueIndex:idx_product_lot;not null;size:64" json:"lot_number"`
	ManufacturedAt time.Time `gorm:"not null" json:"manufactured_at"`
	ExpiresAt      time.Time `gorm:"not null" json:"expires_at"`
	PurityPercent  float64   `json:"purity_percent"`
	Quantity       int       `gorm:"not null;default:0" json:"quantity"`
	COAPath        string    `json:"-"`
	HasCOA         bool      `gorm:"-" json:"has_coa"`
	Released       bool      `gorm:"not null;default:false" json:"released"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (l *Lot) AfterFind(tx *gorm.DB) error {
	l.HasCOA = l.COAPath != ""
	return nil
}
