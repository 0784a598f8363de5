package handlers

import (
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/withdrawal"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

type WithdrawalHandler struct {
	svc *withdrawal.Service
}

func NewWithdrawalHandler(svc *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc}
}

func (h *WithdrawalHandler) Request(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input withdrawal.RequestInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	wr, err := h.svc.Request(c.UserContext(), m, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, wr)
}

func (h *WithdrawalHandler) ListMine(c *fiber.Ctx) error {
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

func (h *WithdrawalHandler) CancelMine(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	wr, err := h.svc.Cancel(c.UserContext(), m.ID, id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, wr)
}

func (h *WithdrawalHandler) List(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	filter := repositories.WithdrawalFilter{
		MerchantID: queryUint(c, "merchant_id"),
		Status:     models.WithdrawalStatus(c.Query("status")),
	}
	list, total, err := h.svc.List(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *WithdrawalHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	wr, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, wr)
}

func (h *WithdrawalHandler) Approve(c *fiber.Ctx) error {
	return h.admin(c, func(id, adminID uint) (*models.WithdrawalRequest, error) {
		return h.svc.Approve(c.UserContext(), id, adminID)
	})
}

func (h *WithdrawalHandler) Reject(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason" validate:"required,max=255"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	return h.admin(c, func(id, adminID uint) (*models.WithdrawalRequest, error) {
		return h.svc.Reject(c.UserContext(), id, adminID, input.Reason)
	})
}

func (h *WithdrawalHandler) Complete(c *fiber.Ctx) error {
	var input struct {
		PayoutReference string `json:"payout_reference" validate:"required,max=128"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	return h.admin(c, func(id, adminID uint) (*models.WithdrawalRequest, error) {
		return h.svc.Complete(c.UserContext(), id, adminID, input.PayoutReference)
	})
}

func (h *WithdrawalHandler) admin(c *fiber.Ctx, fn func(id, adminID uint) (*models.WithdrawalRequest, error)) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	wr, err := fn(id, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, wr)
}
