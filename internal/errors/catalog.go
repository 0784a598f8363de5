package errors

import "net/http"

var (
	ErrProductNotFound = &DomainError{
		Code:    "PRODUCT_NOT_FOUND",
		Message: "product not found",
		Status:  http.StatusNotFound,
	}
	ErrDuplicateSKU = &DomainError{
		Code:    "DUPLICATE_SKU",
		Message: "a product with this SKU already exists",
		Status:  http.StatusConflict,
	}
	ErrInsufficientStock = &DomainError{
		Code:    "INSUFFICIENT_STOCK",
		Message: "insufficient stock",
		Status:  http.StatusConflict,
	}
	ErrProductInactive = &DomainError{
		Code:    "PRODUCT_INACTIVE",
		Message: "product is not available",
		Status:  http.StatusConflict,
	}
	ErrTierNotFound = &DomainError{
		Code:    "PRICING_TIER_NOT_FOUND",
		Message: "pricing tier not found",
		Status:  http.StatusNotFound,
	}
	ErrLotNotFound = &DomainError{
		Code:    "LOT_NOT_FOUND",
		Message: "lot not found",
		Status:  http.StatusNotFound,
	}
	ErrDuplicateLot = &DomainError{
		Code:    "DUPLICATE_LOT",
		Message: "lot number already exists for this product",
		Status:  http.StatusConflict,
	}
	ErrInvalidLotDates = &DomainError{
		Code:    "INVALID_LOT_DATES",
		Message: "lot expiry must be after its manufacture date",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidCOA = &DomainError{
		Code:    "INVALID_COA",
		Message: "certificate of analysis must be a PDF",
		Status:  http.StatusBadRequest,
	}
	ErrCOAMissing = &DomainError{
		Code:    "COA_MISSING",
		Message: "no certificate of analysis is available",
		Status:  http.StatusNotFound,
	}
)
