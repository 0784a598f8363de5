package handlers

import (
	"context"

	"portal/internal/logging"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/topup"
	"portal/internal/services/wallet"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Settler is satisfied by *order.Service.
type Settler interface {
	Settle(ctx context.Context, merchantID uint) (int, error)
}

type WalletHandler struct {
	walletService wallet.Service
	topups        *topup.Service
	settler       Settler
}

func NewWalletHandler(walletService wallet.Service, topups *topup.Service, settler Settler) *WalletHandler {
	return &WalletHandler{walletService: walletService, topups: topups, settler: settler}
}

// GetWallet reports the balance. Held funds are already out of the
// balance, so available equals balance.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	w, err := h.walletService.GetWallet(c.UserContext(), m.ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"balance_cents":   w.BalanceCents,
		"held_cents":      w.HeldCents,
		"available_cents": w.BalanceCents,
		"currency":        w.Currency,
		"status":          w.Status,
	})
}

func (h *WalletHandler) Entries(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	p := pagination.ParseFromRequest(c)
	filter := repositories.EntryFilter{Type: models.EntryType(c.Query("type"))}
	list, total, err := h.walletService.ListEntries(c.UserContext(), m.ID, filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *WalletHandler) TopUp(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		AmountCents int64 `json:"amount_cents" validate:"required,gte=500,lte=1000000"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	pi, err := h.topups.Create(c.UserContext(), m, input.AmountCents, c.Get(headerIdempotencyKey))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, fiber.Map{
		"payment_intent_id": pi.ID,
		"client_secret":     pi.ClientSecret,
		"amount_cents":      pi.AmountCents,
		"currency":          pi.Currency,
	})
}

func (h *WalletHandler) ListWallets(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	list, total, err := h.walletService.ListWallets(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

// Adjust applies a manual correction. A credit may unblock awaiting orders.
func (h *WalletHandler) Adjust(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		AmountCents int64  `json:"amount_cents" validate:"required"`
		Reason      string `json:"reason" validate:"required,max=255"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	entry, err := h.walletService.Adjust(c.UserContext(), id, input.AmountCents, input.Reason, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	if input.AmountCents > 0 && h.settler != nil {
		if _, err := h.settler.Settle(c.UserContext(), id); err != nil {
			logging.FromFiber(c).Error("settle after adjustment", zap.Uint("merchant_id", id), zap.Error(err))
		}
	}
	return utils.Created(c, entry)
}

func (h *WalletHandler) SetStatus(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		Status string `json:"status" validate:"required,oneof=active locked"`
		Reason string `json:"reason" validate:"max=255"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	w, err := h.walletService.SetStatus(c.UserContext(), id, input.Status, input.Reason)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, w)
}
