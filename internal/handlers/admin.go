package handlers

import (
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/merchant"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

// AdminMerchantHandler serves KYB review and merchant settings.
type AdminMerchantHandler struct {
	svc *merchant.Service
}

func NewAdminMerchantHandler(svc *merchant.Service) *AdminMerchantHandler {
	return &AdminMerchantHandler{svc: svc}
}

func (h *AdminMerchantHandler) List(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	filter := repositories.MerchantFilter{
		Status: models.KYBStatus(c.Query("status")),
		Query:  c.Query("q"),
	}
	list, total, err := h.svc.List(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *AdminMerchantHandler) Detail(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	m, err := h.svc.Detail(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, m)
}

func (h *AdminMerchantHandler) StartReview(c *fiber.Ctx) error {
	return h.review(c, func(id, adminID uint) (*models.Merchant, error) {
		return h.svc.StartReview(c.UserContext(), id, adminID)
	})
}

func (h *AdminMerchantHandler) Decide(c *fiber.Ctx) error {
	var input merchant.DecisionInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	return h.review(c, func(id, adminID uint) (*models.Merchant, error) {
		return h.svc.Decide(c.UserContext(), id, adminID, input)
	})
}

func (h *AdminMerchantHandler) Suspend(c *fiber.Ctx) error {
	var input struct {
		Notes string `json:"notes" validate:"max=2000"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	return h.review(c, func(id, adminID uint) (*models.Merchant, error) {
		return h.svc.Suspend(c.UserContext(), id, adminID, input.Notes)
	})
}

func (h *AdminMerchantHandler) Reinstate(c *fiber.Ctx) error {
	return h.review(c, func(id, adminID uint) (*models.Merchant, error) {
		return h.svc.Reinstate(c.UserContext(), id, adminID)
	})
}

func (h *AdminMerchantHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		PricingTier string `json:"pricing_tier" validate:"required,max=50"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	m, err := h.svc.SetPricingTier(c.UserContext(), id, input.PricingTier)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, m)
}

func (h *AdminMerchantHandler) review(c *fiber.Ctx, fn func(id, adminID uint) (*models.Merchant, error)) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	m, err := fn(id, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, m)
}
