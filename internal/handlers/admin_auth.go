package handlers

import (
	"portal/internal/services/adminauth"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminAuthHandler struct {
	svc *adminauth.Service
}

func NewAdminAuthHandler(svc *adminauth.Service) *AdminAuthHandler {
	return &AdminAuthHandler{svc: svc}
}

func (h *AdminAuthHandler) RequestCode(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	if err := h.svc.RequestCode(c.UserContext(), input.Email, c.IP()); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "If the address belongs to an admin, a sign-in code is on its way"})
}

func (h *AdminAuthHandler) VerifyCode(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,numeric,len=6"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	pair, err := h.svc.VerifyCode(c.UserContext(), input.Email, input.Code)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, pair)
}

func (h *AdminAuthHandler) Refresh(c *fiber.Ctx) error {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	pair, err := h.svc.Refresh(c.UserContext(), input.RefreshToken)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, pair)
}

// Logout revokes every token issued to the admin.
func (h *AdminAuthHandler) Logout(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	if err := h.svc.Logout(c.UserContext(), claims.AdminID); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Successfully logged out"})
}

func (h *AdminAuthHandler) Me(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"admin_id":    claims.AdminID,
		"email":       claims.Email,
		"role":        claims.Role,
		"permissions": claims.Permissions,
	})
}
