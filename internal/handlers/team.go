package handlers

import (
	"portal/internal/services/team"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TeamHandler struct {
	svc *team.Service
}

func NewTeamHandler(svc *team.Service) *TeamHandler {
	return &TeamHandler{svc: svc}
}

func (h *TeamHandler) List(c *fiber.Ctx) error {
	admins, err := h.svc.List(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": admins})
}

func (h *TeamHandler) Invite(c *fiber.Ctx) error {
	actor, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	var input team.InviteInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	admin, err := h.svc.Invite(c.UserContext(), actor, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, admin)
}

func (h *TeamHandler) Update(c *fiber.Ctx) error {
	actor, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input team.UpdateInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	admin, err := h.svc.Update(c.UserContext(), actor, id, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, admin)
}

func (h *TeamHandler) Disable(c *fiber.Ctx) error {
	actor, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	admin, err := h.svc.Disable(c.UserContext(), actor, id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, admin)
}
