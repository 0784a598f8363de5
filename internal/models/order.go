package models

import "time"

type OrderStatus string

const (
	OrderStatusAwaitingFunds OrderStatus = "awaiting_funds"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingFunds: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:          {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:       {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Charged reports whether the wallet has been debited for an order in s.
func (s OrderStatus) Charged() bool {
	return s == OrderStatusPaid || s == OrderStatusProcessing || s == OrderStatusShipped || s == OrderStatusDelivered
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAwaitingFunds, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a merchant's drop-ship order fulfilled from the warehouse.
type Order struct {
	ID             uint        `gorm:"primarykey" json:"id"`
	Number         string      `gorm:"uniqueIndex;not null;size:32" json:"number"`
	MerchantID     uint        `gorm:"index;not null" json:"merchant_id"`
	Status         OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SubtotalCents  int64       `gorm:"not null" json:"subtotal_cents"`
	ShippingCents  int64       `gorm:"not null" json:"shipping_cents"`
	TotalCents     int64       `gorm:"not null" json:"total_cents"`
	IdempotencyKey string      `gorm:"size:128;index" json:"-"`

	ShipToName       string `gorm:"size:255" json:"ship_to_name"`
	ShipToCompany    string `gorm:"size:255" json:"ship_to_company"`
	ShipToLine1      string `gorm:"size:255" json:"ship_to_line1"`
	ShipToLine2      string `gorm:"size:255" json:"ship_to_line2"`
	ShipToCity       string `gorm:"size:100" json:"ship_to_city"`
	ShipToState      string `gorm:"size:50" json:"ship_to_state"`
	ShipToPostalCode string `gorm:"size:20" json:"ship_to_postal_code"`
	ShipToCountry    string `gorm:"size:2" json:"ship_to_country"`
	ShipToPhone      string `gorm:"size:32" json:"ship_to_phone"`
	CustomerEmail    string `gorm:"size:255" json:"customer_email"`
	ExternalRef      string `gorm:"size:128;index" json:"external_ref"`
	Notes            string `gorm:"type:text" json:"notes"`

	PaidAt       *time.Time `json:"paid_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"size:255" json:"cancel_reason,omitempty"`

	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Shipment  *Shipment   `gorm:"foreignKey:OrderID" json:"shipment,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItem snapshots product and price at order time.
type OrderItem struct {
	ID             uint   `gorm:"primarykey" json:"id"`
	OrderID        uint   `gorm:"index;not null" json:"order_id"`
	ProductID      uint   `gorm:"index;not null" json:"product_id"`
	SKU            string `gorm:"size:64;not null" json:"sku"`
	Name           string `gorm:"size:255" json:"name"`
	Quantity       int    `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
	LineTotalCents int64  `gorm:"not null" json:"line_total_cents"`
}

// Shipment is the label purchased for an order.
type Shipment struct {
	ID                    uint      `gorm:"primarykey" json:"id"`
	OrderID               uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	CarrierCode           string    `gorm:"size:50" json:"carrier_code"`
	ServiceCode           string    `gorm:"size:100" json:"service_code"`
	TrackingNumber        string    `gorm:"size:100;index" json:"tracking_number"`
	ShipStationShipmentID int64     `gorm:"column:shipstation_shipment_id" json:"shipstation_shipment_id"`
	LabelPath             string    `json:"-"`
	CostCents             int64     `json:"cost_cents"`
	Voided                bool      `gorm:"not null;default:false" json:"voided"`
	CreatedAt             time.Time `json:"created_at"`
}
