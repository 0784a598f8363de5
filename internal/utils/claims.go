package utils

import (
	apperrors "portal/internal/errors"
	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	LocalsAdminClaims = "admin_claims"
	LocalsSession     = "session"
	LocalsAccessToken = "access_token"
	LocalsMerchant    = "merchant"
)

// GetAdminClaims extracts the admin claims from the Fiber context.
func GetAdminClaims(c *fiber.Ctx) (*models.AdminClaims, error) {
	claims, ok := c.Locals(LocalsAdminClaims).(*models.AdminClaims)
	if !ok || claims == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// GetSessionClaims extracts the verified Supabase session.
func GetSessionClaims(c *fiber.Ctx) (*models.SessionClaims, error) {
	claims, ok := c.Locals(LocalsSession).(*models.SessionClaims)
	if !ok || claims == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// GetAccessToken returns the raw merchant access token.
func GetAccessToken(c *fiber.Ctx) string {
	token, _ := c.Locals(LocalsAccessToken).(string)
	return token
}

// GetMerchant returns the merchant loaded by RequireMerchant.
func GetMerchant(c *fiber.Ctx) (*models.Merchant, error) {
	m, ok := c.Locals(LocalsMerchant).(*models.Merchant)
	if !ok || m == nil {
		return nil, apperrors.ErrMerchantNotFound
	}
	return m, nil
}
