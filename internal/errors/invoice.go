package errors

import "net/http"

var (
	ErrInvoiceNotFound = &DomainError{
		Code:    "INVOICE_NOT_FOUND",
		Message: "invoice not found",
		Status:  http.StatusNotFound,
	}
	ErrInvoiceClosed = &DomainError{
		Code:    "INVOICE_CLOSED",
		Message: "invoice is already paid or cancelled",
		Status:  http.StatusConflict,
	}
	ErrInvalidSignature = &DomainError{
		Code:    "INVALID_SIGNATURE",
		Message: "webhook signature verification failed",
		Status:  http.StatusUnauthorized,
	}
	ErrInvoicingUnavailable = &DomainError{
		Code:    "INVOICING_UNAVAILABLE",
		Message: "invoicing is not configured",
		Status:  http.StatusServiceUnavailable,
	}
)
