package errors

import "net/http"

var (
	ErrAdminNotFound = &DomainError{
		Code:    "ADMIN_NOT_FOUND",
		Message: "team member not found",
		Status:  http.StatusNotFound,
	}
	ErrAdminExists = &DomainError{
		Code:    "ADMIN_EXISTS",
		Message: "a team member with this email already exists",
		Status:  http.StatusConflict,
	}
	ErrLastOwner = &DomainError{
		Code:    "LAST_OWNER",
		Message: "at least one active owner is required",
		Status:  http.StatusConflict,
	}
	ErrSelfModification = &DomainError{
		Code:    "SELF_MODIFICATION",
		Message: "you cannot disable or demote yourself",
		Status:  http.StatusConflict,
	}
	ErrOwnerGrant = &DomainError{
		Code:    "OWNER_GRANT_FORBIDDEN",
		Message: "only owners can grant the owner role",
		Status:  http.StatusForbidden,
	}
	ErrInvalidRole = &DomainError{
		Code:    "INVALID_ROLE",
		Message: "invalid role",
		Status:  http.StatusBadRequest,
	}
)
