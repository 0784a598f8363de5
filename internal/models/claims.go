package models

import "github.com/golang-jwt/jwt/v5"

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AdminClaims are carried by the tokens this service mints for admins.
type AdminClaims struct {
	jwt.RegisteredClaims
	AdminID      uint      `json:"admin_id"`
	Email        string    `json:"email"`
	Role         AdminRole `json:"role"`
	Permissions  []string  `json:"permissions,omitempty"`
	TokenVersion int       `json:"token_version"`
	TokenType    string    `json:"typ"`
}

// HasPermission checks if the claims include a specific permission
func (c *AdminClaims) HasPermission(permission string) bool {
	if c.Role == AdminRoleOwner {
		return true
	}
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// SessionClaims are the fields of a Supabase Auth access token this service
// relies on. The subject is the Supabase user id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	Role         string                 `json:"role"`
	SessionID    string                 `json:"session_id"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// UserID returns the Supabase user id.
func (c *SessionClaims) UserID() string {
	return c.Subject
}
