// Package errors declares the domain errors returned by services and the
// HTTP status each one maps to.
package errors

import (
	stderrors "errors"
	"net/http"
)

// DomainError is a business rule failure that is safe to show to callers.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string {
	return e.Message
}

// HTTPStatus returns the status to respond with, 400 when unset.
func (e *DomainError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// WithMessage returns a copy of e with a more specific message. The copy
// still matches e under errors.Is.
func (e *DomainError) WithMessage(msg string) *DomainError {
	return &DomainError{Code: e.Code, Message: msg, Status: e.Status}
}

// Is matches on Code so that copies made with WithMessage compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e == t || (e.Code != "" && e.Code == t.Code)
}

// As extracts the first DomainError in err's chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Is is errors.Is, re-exported so callers need only one errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

var (
	ErrUnauthorized = &DomainError{
		Code:    "UNAUTHORIZED",
		Message: "authentication required",
		Status:  http.StatusUnauthorized,
	}
	ErrForbidden = &DomainError{
		Code:    "FORBIDDEN",
		Message: "insufficient permissions",
		Status:  http.StatusForbidden,
	}
	ErrNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "resource not found",
		Status:  http.StatusNotFound,
	}
	ErrInvalidRequest = &DomainError{
		Code:    "INVALID_REQUEST",
		Message: "invalid request",
		Status:  http.StatusBadRequest,
	}
	ErrUpstream = &DomainError{
		Code:    "UPSTREAM_UNAVAILABLE",
		Message: "a downstream service is unavailable, please try again",
		Status:  http.StatusBadGateway,
	}
)
