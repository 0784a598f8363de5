package handlers

import (
	"strings"

	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/order"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	svc *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type reasonInput struct {
	Reason string `json:"reason" validate:"max=255"`
}

// Create answers 201 for a new order and 200 when the idempotency key
// replays an earlier one.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input order.CreateInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	key := strings.TrimSpace(c.Get(headerIdempotencyKey))
	if len(key) > 128 {
		return utils.BadRequest(c, "Idempotency-Key must be at most 128 characters")
	}
	res, err := h.svc.Create(c.UserContext(), m, input, key)
	if err != nil {
		return utils.Fail(c, err)
	}
	if res.Replayed {
		return utils.Success(c, res.Order)
	}
	return utils.Created(c, res.Order)
}

func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	p := pagination.ParseFromRequest(c)
	list, total, err := h.svc.ListForMerchant(c.UserContext(), m.ID, models.OrderStatus(c.Query("status")), p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *OrderHandler) GetMine(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	o, err := h.svc.GetForMerchant(c.UserContext(), m.ID, id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, o)
}

func (h *OrderHandler) CancelMine(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	return h.cancel(c, order.Actor{MerchantID: m.ID})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	filter := repositories.OrderFilter{
		MerchantID: queryUint(c, "merchant_id"),
		Status:     models.OrderStatus(c.Query("status")),
		Query:      c.Query("q"),
	}
	list, total, err := h.svc.List(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	o, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, o)
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	o, err := h.svc.UpdateStatus(c.UserContext(), id, input.Status, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, o)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	return h.cancel(c, order.Actor{AdminID: claims.AdminID})
}

func (h *OrderHandler) cancel(c *fiber.Ctx, actor order.Actor) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input reasonInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	o, err := h.svc.Cancel(c.UserContext(), actor, id, input.Reason)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, o)
}

func (h *OrderHandler) CreateLabel(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input order.LabelInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	o, err := h.svc.CreateLabel(c.UserContext(), id, input, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, o)
}

func (h *OrderHandler) LabelURL(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	url, err := h.svc.LabelURL(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"url": url})
}
