package errors

import "net/http"

var (
	ErrMerchantNotFound = &DomainError{
		Code:    "MERCHANT_NOT_FOUND",
		Message: "merchant not found",
		Status:  http.StatusNotFound,
	}
	ErrMerchantNotApproved = &DomainError{
		Code:    "MERCHANT_NOT_APPROVED",
		Message: "merchant account is not approved",
		Status:  http.StatusForbidden,
	}
	ErrOnboardingLocked = &DomainError{
		Code:    "ONBOARDING_LOCKED",
		Message: "business profile cannot be changed while under review",
		Status:  http.StatusConflict,
	}
	ErrOnboardingIncomplete = &DomainError{
		Code:    "ONBOARDING_INCOMPLETE",
		Message: "business profile is incomplete",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrMissingDocuments = &DomainError{
		Code:    "MISSING_KYB_DOCUMENTS",
		Message: "required KYB documents are missing",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrInvalidKYBTransition = &DomainError{
		Code:    "INVALID_KYB_TRANSITION",
		Message: "KYB status does not allow this action",
		Status:  http.StatusConflict,
	}
	ErrNotesRequired = &DomainError{
		Code:    "NOTES_REQUIRED",
		Message: "notes are required for this decision",
		Status:  http.StatusBadRequest,
	}
	ErrInvalidDocument = &DomainError{
		Code:    "INVALID_DOCUMENT",
		Message: "document must be a PDF, PNG or JPEG no larger than 10 MB",
		Status:  http.StatusBadRequest,
	}
	ErrMerchantExists = &DomainError{
		Code:    "MERCHANT_EXISTS",
		Message: "a merchant already exists for this account",
		Status:  http.StatusConflict,
	}
)
