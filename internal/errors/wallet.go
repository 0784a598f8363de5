package errors

import "net/http"

var (
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
		Status:  http.StatusConflict,
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "invalid amount",
		Status:  http.StatusBadRequest,
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
		Status:  http.StatusNotFound,
	}
	ErrWalletLocked = &DomainError{
		Code:    "WALLET_LOCKED",
		Message: "wallet is locked",
		Status:  http.StatusConflict,
	}
	ErrDuplicateEntry = &DomainError{
		Code:    "DUPLICATE_WALLET_ENTRY",
		Message: "wallet entry already recorded",
		Status:  http.StatusConflict,
	}
	ErrTopupUnavailable = &DomainError{
		Code:    "TOPUP_UNAVAILABLE",
		Message: "card top-ups are not configured",
		Status:  http.StatusServiceUnavailable,
	}
)
