package catalog

import (
	"time"

	"portal/internal/models"
)

type ProductInput struct {
	SKU               string `json:"sku" validate:"required,sku"`
	Name              string `json:"name" validate:"required,max=255"`
	Description       string `json:"description"`
	Category          string `json:"category" validate:"max=100"`
	Unit              string `json:"unit" validate:"max=50"`
	BasePriceCents    int64  `json:"base_price_cents" validate:"gte=0"`
	MSRPCents         int64  `json:"msrp_cents" validate:"gte=0"`
	StockOnHand       int    `json:"stock_on_hand" validate:"gte=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	Active            *bool  `json:"active"`
}

// ProductUpdate changes only the fields that are set. Stock moves through
// AdjustInventory.
type ProductUpdate struct {
	SKU               *string `json:"sku" validate:"omitempty,sku"`
	Name              *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string `json:"description"`
	Category          *string `json:"category" validate:"omitempty,max=100"`
	Unit              *string `json:"unit" validate:"omitempty,max=50"`
	BasePriceCents    *int64  `json:"base_price_cents" validate:"omitempty,gte=0"`
	MSRPCents         *int64  `json:"msrp_cents" validate:"omitempty,gte=0"`
	LowStockThreshold *int    `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	Active            *bool   `json:"active"`
}

type InventoryInput struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=255"`
}

type TierInput struct {
	DiscountBPS int    `json:"discount_bps" validate:"gte=0,lte=10000"`
	Description string `json:"description" validate:"max=255"`
}

// PriceOverride sets or, with a nil PriceCents, removes a merchant price.
type PriceOverride struct {
	ProductID  uint   `json:"product_id" validate:"required"`
	PriceCents *int64 `json:"price_cents" validate:"omitempty,gte=0"`
}

type MerchantPriceView struct {
	ProductID           uint   `json:"product_id"`
	SKU                 string `json:"sku"`
	Name                string `json:"name"`
	BasePriceCents      int64  `json:"base_price_cents"`
	TierPriceCents      int64  `json:"tier_price_cents"`
	OverrideCents       *int64 `json:"override_cents"`
	EffectivePriceCents int64  `json:"effective_price_cents"`
}

type LotInput struct {
	LotNumber      string    `json:"lot_number" validate:"required,max=64"`
	ManufacturedAt time.Time `json:"manufactured_at" validate:"required"`
	ExpiresAt      time.Time `json:"expires_at" validate:"required"`
	PurityPercent  float64   `json:"purity_percent" validate:"gte=0,lte=100"`
	Quantity       int       `json:"quantity" validate:"gte=0"`
}

type ListingInput struct {
	RetailPriceCents int64 `json:"retail_price_cents" validate:"gte=0"`
	Active           bool  `json:"active"`
}

type Listing struct {
	RetailPriceCents int64 `json:"retail_price_cents"`
	Active           bool  `json:"active"`
}

// CatalogItem is one product as a merchant sees it.
type CatalogItem struct {
	ProductID    uint                `json:"product_id"`
	SKU          string              `json:"sku"`
	Name         string              `json:"name"`
	Slug         string              `json:"slug"`
	Description  string              `json:"description"`
	Category     string              `json:"category"`
	Unit         string              `json:"unit"`
	MSRPCents    int64               `json:"msrp_cents"`
	PriceCents   int64               `json:"price_cents"`
	Availability models.Availability `json:"availability"`
	HasCOA       bool                `json:"has_coa"`
	Listing      *Listing            `json:"listing,omitempty"`
}
