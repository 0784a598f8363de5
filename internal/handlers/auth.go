package handlers

import (
	"time"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/middleware"
	"portal/internal/services/auth"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const refreshCookieMaxAge = 30 * 24 * 60 * 60

type credentials struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthHandler serves the merchant auth endpoints backed by Supabase.
type AuthHandler struct {
	authService auth.Service
	secure      bool
}

func NewAuthHandler(authService auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{authService: authService, secure: secureCookies}
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var input credentials
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	user, err := h.authService.SignUp(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, fiber.Map{
		"user":    fiber.Map{"id": user.ID, "email": user.Email},
		"message": "Check your email to confirm your account",
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input credentials
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	session, redirect, err := h.authService.Login(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.setSessionCookies(c, session)
	return utils.Success(c, sessionBody(session, redirect))
}

// Refresh accepts the refresh token from the cookie or the body.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(middleware.CookieRefreshToken)
	if token == "" {
		var input struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.BodyParser(&input)
		token = input.RefreshToken
	}
	session, err := h.authService.Refresh(c.UserContext(), token)
	if err != nil {
		h.clearSessionCookies(c)
		return utils.Fail(c, err)
	}
	h.setSessionCookies(c, session)
	return utils.Success(c, sessionBody(session, ""))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.BearerToken(c)
	if token == "" {
		token = c.Cookies(middleware.CookieAccessToken)
	}
	if token != "" {
		if err := h.authService.Logout(c.UserContext(), token); err != nil {
			return utils.Fail(c, err)
		}
	}
	h.clearSessionCookies(c)
	return utils.Success(c, fiber.Map{"message": "Successfully logged out"})
}

// ForgotPassword always answers 200 so callers cannot probe for accounts.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	h.authService.ForgotPassword(c.UserContext(), input.Email)
	return utils.Success(c, fiber.Map{"message": "If the account exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input struct {
		Password string `json:"password" validate:"required,max=72"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	token := utils.GetAccessToken(c)
	if token == "" {
		return utils.Fail(c, apperrors.ErrUnauthorized)
	}
	if err := h.authService.ResetPassword(c.UserContext(), token, input.Password); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Password updated"})
}

// Confirm handles the email link for sign-up confirmation and recovery.
func (h *AuthHandler) Confirm(c *fiber.Ctx) error {
	session, target := h.authService.Confirm(c.UserContext(), auth.ConfirmParams{
		TokenHash: c.Query("token_hash"),
		Type:      c.Query("type"),
		Next:      c.Query("next"),
		Error:     firstNonEmpty(c.Query("error"), c.Query("error_description")),
	})
	if session != nil {
		h.setSessionCookies(c, session)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// Callback completes the PKCE flow with the verifier cookie set by the
// browser client.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	session, target := h.authService.Callback(c.UserContext(), auth.CallbackParams{
		Code:     c.Query("code"),
		Verifier: c.Cookies(middleware.CookieCodeVerifier),
		Next:     c.Query("next"),
		Error:    firstNonEmpty(c.Query("error"), c.Query("error_description")),
	})
	h.expireCookie(c, middleware.CookieCodeVerifier)
	if session != nil {
		h.setSessionCookies(c, session)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

func sessionBody(s *clients.SupabaseSession, redirect string) fiber.Map {
	body := fiber.Map{
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expires_in":    s.ExpiresIn,
		"expires_at":    s.ExpiresAt,
		"user":          fiber.Map{"id": s.User.ID, "email": s.User.Email},
	}
	if redirect != "" {
		body["redirect_to"] = redirect
	}
	return body
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, s *clients.SupabaseSession) {
	maxAge := s.ExpiresIn
	if maxAge <= 0 {
		maxAge = 3600
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieAccessToken,
		Value:    s.AccessToken,
		HTTPOnly: true,
		Secure:   h.secure,
		Path:     "/",
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   maxAge,
	})
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieRefreshToken,
		Value:    s.RefreshToken,
		HTTPOnly: true,
		Secure:   h.secure,
		Path:     "/",
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   refreshCookieMaxAge,
	})
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	h.expireCookie(c, middleware.CookieAccessToken)
	h.expireCookie(c, middleware.CookieRefreshToken)
}

func (h *AuthHandler) expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.secure,
		Path:     "/",
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
