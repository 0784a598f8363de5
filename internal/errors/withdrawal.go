package errors

import "net/http"

var (
	ErrWithdrawalNotFound = &DomainError{
		Code:    "WITHDRAWAL_NOT_FOUND",
		Message: "withdrawal request not found",
		Status:  http.StatusNotFound,
	}
	ErrWithdrawalAlreadyCompleted = &DomainError{
		Code:    "WITHDRAWAL_ALREADY_COMPLETED",
		Message: "withdrawal has already been completed",
		Status:  http.StatusConflict,
	}
	ErrInvalidWithdrawalTransition = &DomainError{
		Code:    "INVALID_WITHDRAWAL_TRANSITION",
		Message: "withdrawal status does not allow this action",
		Status:  http.StatusConflict,
	}
	ErrReasonRequired = &DomainError{
		Code:    "REASON_REQUIRED",
		Message: "a reason is required",
		Status:  http.StatusBadRequest,
	}
)
