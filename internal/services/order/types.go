package order

import (
	"strings"

	"portal/internal/clients"
	"portal/internal/models"
)

type ItemInput struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1,max=1000"`
}

type AddressInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	Company    string `json:"company" validate:"max=255"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=50"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"omitempty,len=2"`
	Phone      string `json:"phone" validate:"max=32"`
}

type CreateInput struct {
	Items         []ItemInput  `json:"items" validate:"required,min=1,max=50,dive"`
	ShipTo        AddressInput `json:"ship_to" validate:"required"`
	CustomerEmail string       `json:"customer_email" validate:"omitempty,email,max=255"`
	ExternalRef   string       `json:"external_ref" validate:"max=128"`
	Notes         string       `json:"notes" validate:"max=2000"`
}

// CreateResult reports whether the order was replayed from an earlier
// request with the same idempotency key.
type CreateResult struct {
	Order    *models.Order
	Replayed bool
}

type LabelInput struct {
	CarrierCode string  `json:"carrier_code" validate:"required,max=50"`
	ServiceCode string  `json:"service_code" validate:"required,max=100"`
	PackageCode string  `json:"package_code" validate:"max=50"`
	WeightOz    float64 `json:"weight_oz" validate:"required,gt=0,lte=2400"`
}

// Actor identifies who is acting on an order. A zero MerchantID means an
// admin.
type Actor struct {
	MerchantID uint
	AdminID    uint
}

func (a Actor) isMerchant() bool { return a.MerchantID != 0 }

func (in AddressInput) apply(o *models.Order) {
	o.ShipToName = strings.TrimSpace(in.Name)
	o.ShipToCompany = strings.TrimSpace(in.Company)
	o.ShipToLine1 = strings.TrimSpace(in.Line1)
	o.ShipToLine2 = strings.TrimSpace(in.Line2)
	o.ShipToCity = strings.TrimSpace(in.City)
	o.ShipToState = strings.TrimSpace(in.State)
	o.ShipToPostalCode = strings.TrimSpace(in.PostalCode)
	o.ShipToCountry = strings.ToUpper(strings.TrimSpace(in.Country))
	if o.ShipToCountry == "" {
		o.ShipToCountry = "US"
	}
	o.ShipToPhone = strings.TrimSpace(in.Phone)
}

func shipTo(o *models.Order) clients.ShipStationAddress {
	return clients.ShipStationAddress{
		Name:       o.ShipToName,
		Company:    o.ShipToCompany,
		Street1:    o.ShipToLine1,
		Street2:    o.ShipToLine2,
		City:       o.ShipToCity,
		State:      o.ShipToState,
		PostalCode: o.ShipToPostalCode,
		Country:    o.ShipToCountry,
		Phone:      o.ShipToPhone,
	}
}
