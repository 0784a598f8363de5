// Package middleware authenticates merchant sessions and admin tokens for
// the fiber routes.
package middleware

import (
	"context"
	"errors"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/logging"
	"portal/internal/models"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Supabase session cookies.
const (
	CookieAccessToken  = "sb-access-token"
	CookieRefreshToken = "sb-refresh-token"
	CookieCodeVerifier = "sb-code-verifier"
)

// SessionVerifier is satisfied by auth.Service.
type SessionVerifier interface {
	VerifySession(token string) (*models.SessionClaims, error)
}

// MerchantLoader is satisfied by *merchant.Service.
type MerchantLoader interface {
	Profile(ctx context.Context, authUserID string) (*models.Merchant, error)
}

// AdminAuthenticator is satisfied by *adminauth.Service.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.AdminClaims, error)
}

// BearerToken returns the token from the Authorization header, if any.
func BearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// SessionAuth verifies the Supabase access token from the Authorization
// header or the sb-access-token cookie.
func SessionAuth(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			token = c.Cookies(CookieAccessToken)
		}
		if token == "" {
			return utils.Fail(c, apperrors.ErrUnauthorized)
		}
		claims, err := verifier.VerifySession(token)
		if err != nil {
			return utils.Fail(c, err)
		}
		c.Locals(utils.LocalsSession, claims)
		c.Locals(utils.LocalsAccessToken, token)
		return c.Next()
	}
}

// RequireMerchant loads the merchant owned by the session user. It must run
// after SessionAuth.
func RequireMerchant(loader MerchantLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := utils.GetSessionClaims(c)
		if err != nil {
			return utils.Fail(c, err)
		}
		m, err := loader.Profile(c.UserContext(), session.UserID())
		if err != nil {
			return utils.Fail(c, err)
		}
		c.Locals(utils.LocalsMerchant, m)
		return c.Next()
	}
}

// RequireApproved rejects merchants whose KYB is not approved.
func RequireApproved() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := utils.GetMerchant(c)
		if err != nil {
			return utils.Fail(c, err)
		}
		if !m.IsApproved() {
			return utils.Fail(c, apperrors.ErrMerchantNotApproved)
		}
		return c.Next()
	}
}

// AdminAuth verifies the admin access token and re-checks the admin's
// status and token version on every request.
func AdminAuth(authn AdminAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return utils.Fail(c, apperrors.ErrUnauthorized)
		}
		claims, err := authn.Authenticate(c.UserContext(), token)
		if err != nil {
			var de *apperrors.DomainError
			if !errors.As(err, &de) {
				logging.FromFiber(c).Error("admin authentication failed", zap.Error(err))
			}
			return utils.Fail(c, err)
		}
		c.Locals(utils.LocalsAdminClaims, claims)
		return c.Next()
	}
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetAdminClaims(c)
		if err != nil {
			return utils.Fail(c, err)
		}
		if !claims.HasPermission(permission) {
			logging.FromFiber(c).Warn("permission denied",
				zap.Uint("admin_id", claims.AdminID), zap.String("permission", permission))
			return utils.Fail(c, apperrors.ErrForbidden)
		}
		return c.Next()
	}
}
