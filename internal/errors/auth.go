package errors

import "net/http"

var (
	ErrInvalidCredentials = &DomainError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
	}
	ErrInvalidToken = &DomainError{
		Code:    "INVALID_TOKEN",
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
	}
	ErrSessionExpired = &DomainError{
		Code:    "SESSION_EXPIRED",
		Message: "session expired",
		Status:  http.StatusUnauthorized,
	}
	ErrInvalidCode = &DomainError{
		Code:    "INVALID_CODE",
		Message: "invalid or expired login code",
		Status:  http.StatusUnauthorized,
	}
	ErrRateLimited = &DomainError{
		Code:    "RATE_LIMITED",
		Message: "too many requests, please try again later",
		Status:  http.StatusTooManyRequests,
	}
	ErrWeakPassword = &DomainError{
		Code:    "WEAK_PASSWORD",
		Message: "password must be at least 8 characters",
		Status:  http.StatusBadRequest,
	}
)
