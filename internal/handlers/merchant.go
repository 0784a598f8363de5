package handlers

import (
	"portal/internal/models"
	"portal/internal/services/merchant"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// MerchantHandler serves onboarding and KYB for the signed-in merchant.
type MerchantHandler struct {
	svc *merchant.Service
}

func NewMerchantHandler(svc *merchant.Service) *MerchantHandler {
	return &MerchantHandler{svc: svc}
}

func (h *MerchantHandler) Profile(c *fiber.Ctx) error {
	session, err := utils.GetSessionClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	m, err := h.svc.Profile(c.UserContext(), session.UserID())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, m)
}

func (h *MerchantHandler) SaveOnboarding(c *fiber.Ctx) error {
	session, err := utils.GetSessionClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input merchant.OnboardingInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	m, err := h.svc.SaveOnboarding(c.UserContext(), session, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, m)
}

func (h *MerchantHandler) UploadDocument(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	name, data, err := formFile(c, "file")
	if err != nil {
		return utils.Fail(c, err)
	}
	doc, err := h.svc.UploadDocument(c.UserContext(), m, models.DocumentType(c.FormValue("doc_type")), name, data)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, doc)
}

func (h *MerchantHandler) KYB(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	view, err := h.svc.KYB(c.UserContext(), m)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, view)
}

func (h *MerchantHandler) Submit(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	updated, err := h.svc.Submit(c.UserContext(), m.ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, updated)
}
