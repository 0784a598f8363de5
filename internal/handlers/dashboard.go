package handlers

import (
	"portal/internal/services/dashboard"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	dashboardService dashboard.Service
}

func NewDashboardHandler(dashboardService dashboard.Service) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Merchant returns the signed-in merchant's order counts, balance and spend.
func (h *DashboardHandler) Merchant(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	stats, err := h.dashboardService.Merchant(c.UserContext(), m.ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, stats)
}

func (h *DashboardHandler) Admin(c *fiber.Ctx) error {
	stats, err := h.dashboardService.Admin(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, stats)
}
