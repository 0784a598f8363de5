package handlers

import (
	"portal/internal/repositories"
	"portal/internal/services/catalog"
	"portal/internal/utils"
	"portal/internal/utils/pagination"

	"github.com/gofiber/fiber/v2"
)

// CatalogHandler serves products, inventory, pricing and lots to admins and
// the priced catalog to merchants.
type CatalogHandler struct {
	svc catalog.Service
}

func NewCatalogHandler(svc catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	filter := repositories.ProductFilter{
		Category:   c.Query("category"),
		Query:      c.Query("q"),
		ActiveOnly: c.QueryBool("active_only"),
	}
	list, total, err := h.svc.ListProducts(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	product, err := h.svc.GetProduct(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, product)
}

func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var input catalog.ProductInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	product, err := h.svc.CreateProduct(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, product)
}

func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input catalog.ProductUpdate
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	product, err := h.svc.UpdateProduct(c.UserContext(), id, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, product)
}

// DeleteProduct deactivates; order history keeps pointing at the row.
func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	if err := h.svc.DeactivateProduct(c.UserContext(), id); err != nil {
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CatalogHandler) AdjustInventory(c *fiber.Ctx) error {
	claims, err := utils.GetAdminClaims(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input catalog.InventoryInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	product, err := h.svc.AdjustInventory(c.UserContext(), id, input, claims.AdminID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, product)
}

func (h *CatalogHandler) ListAdjustments(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	p := pagination.ParseFromRequest(c)
	list, total, err := h.svc.ListAdjustments(c.UserContext(), id, p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, list))
}

func (h *CatalogHandler) LowStock(c *fiber.Ctx) error {
	list, err := h.svc.LowStock(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": list})
}

func (h *CatalogHandler) ListTiers(c *fiber.Ctx) error {
	tiers, err := h.svc.ListTiers(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": tiers})
}

func (h *CatalogHandler) SaveTier(c *fiber.Ctx) error {
	var input catalog.TierInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	tier, err := h.svc.SaveTier(c.UserContext(), c.Params("name"), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, tier)
}

func (h *CatalogHandler) MerchantPrices(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	prices, err := h.svc.MerchantPrices(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": prices})
}

func (h *CatalogHandler) SetMerchantPrices(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input struct {
		Prices []catalog.PriceOverride `json:"prices" validate:"required,min=1,max=500,dive"`
	}
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	prices, err := h.svc.SetMerchantPrices(c.UserContext(), id, input.Prices)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": prices})
}

func (h *CatalogHandler) ListLots(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	lots, err := h.svc.ListLots(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": lots})
}

func (h *CatalogHandler) CreateLot(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input catalog.LotInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	lot, err := h.svc.CreateLot(c.UserContext(), id, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, lot)
}

func (h *CatalogHandler) UploadCOA(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	name, data, err := formFile(c, "file")
	if err != nil {
		return utils.Fail(c, err)
	}
	lot, err := h.svc.UploadCOA(c.UserContext(), id, name, data)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, lot)
}

func (h *CatalogHandler) ReleaseLot(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	lot, err := h.svc.ReleaseLot(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, lot)
}

func (h *CatalogHandler) MerchantCatalog(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	items, err := h.svc.MerchantCatalog(c.UserContext(), m)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"data": items})
}

func (h *CatalogHandler) SaveListing(c *fiber.Ctx) error {
	m, err := utils.GetMerchant(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	id, err := idParam(c, "product_id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input catalog.ListingInput
	if err := utils.ParseAndValidate(c, &input); err != nil {
		return utils.Fail(c, err)
	}
	listing, err := h.svc.SaveListing(c.UserContext(), m, id, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, listing)
}

func (h *CatalogHandler) COA(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	url, err := h.svc.COAURL(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"url": url})
}
