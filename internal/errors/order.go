package errors

import "net/http"

var (
	ErrOrderNotFound = &DomainError{
		Code:    "ORDER_NOT_FOUND",
		Message: "order not found",
		Status:  http.StatusNotFound,
	}
	ErrInvalidOrderTransition = &DomainError{
		Code:    "INVALID_ORDER_TRANSITION",
		Message: "order status does not allow this action",
		Status:  http.StatusConflict,
	}
	ErrDuplicateOrderItem = &DomainError{
		Code:    "DUPLICATE_ORDER_ITEM",
		Message: "each product may appear only once per order",
		Status:  http.StatusBadRequest,
	}
	ErrIdempotencyInFlight = &DomainError{
		Code:    "IDEMPOTENCY_IN_FLIGHT",
		Message: "a request with this idempotency key is still being processed",
		Status:  http.StatusConflict,
	}
	ErrShippingUnavailable = &DomainError{
		Code:    "SHIPPING_UNAVAILABLE",
		Message: "label generation is not configured",
		Status:  http.StatusServiceUnavailable,
	}
)
