package handlers

import (
	"context"

	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/invoice"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

type InvoiceHandler struct {
	svc *invoice.Service
}

func NewInvoiceHandler(svc *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

func (h *InvoiceHandler) ListMine(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	p := pagination.ParseFromRequest(c)
	list, total, err := h.svc.ListForMerchant(c.UserContext(), m.ID, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input invoice.CreateInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	inv, err := h.svc.Create(c.UserContext(), claims.AdminID, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, inv)
}

func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	filter := repositories.InvoiceFilter{
		MerchantID: queryUint(c, "merchant_id"),
		Status:     models.InvoiceStatus(c.Query("status")),
	}
	list, total, err := h.svc.List(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	return h.byID(c, h.svc.Get)
}

// Sync pulls the current status from Mercury and credits the wallet on payment.
func (h *InvoiceHandler) Sync(c *fiber.Ctx) error {
	return h.byID(c, h.svc.Sync)
}

func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	return h.byID(c, h.svc.Cancel)
}

func (h *InvoiceHandler) byID(c *fiber.Ctx, fn func(ctx context.Context, id uint) (*models.MercuryInvoice, error)) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	inv, err := fn(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, inv)
}
