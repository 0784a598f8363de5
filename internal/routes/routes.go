// Package routes defines the API routing configuration.
// It mounts every handler under /api/v1 with the session or admin
// middleware chain and the permission each route needs.
package routes

import (
	"time"

	"portal/internal/handlers"
	"portal/internal/middleware"
	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers is everything Setup mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	AdminAuth   *handlers.AdminAuthHandler
	Team        *handlers.TeamHandler
	Merchant    *handlers.MerchantHandler
	Admin       *handlers.AdminMerchantHandler
	Catalog     *handlers.CatalogHandler
	Orders      *handlers.OrderHandler
	Wallet      *handlers.WalletHandler
	Withdrawals *handlers.WithdrawalHandler
	Invoices    *handlers.InvoiceHandler
	Dashboard   *handlers.DashboardHandler
	Webhooks    *handlers.WebhookHandler
}

// Guards are the authentication middlewares the routes depend on.
type Guards struct {
	Sessions middleware.SessionVerifier
	Loader   middleware.MerchantLoader
	Admins   middleware.AdminAuthenticator
	// ResetLimit throttles password reset emails per IP across instances.
	ResetLimit fiber.Handler
	// VerifyLimit throttles admin code guesses per IP.
	VerifyLimit fiber.Handler
}

func orPass(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}

// Setup registers all application routes.
func Setup(app *fiber.App, h Handlers, g Guards) {
	app.Get("/auth/confirm", h.Auth.Confirm)
	app.Get("/auth/callback", h.Auth.Callback)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", h.Webhooks.Stripe)
	webhooks.Post("/mercury", h.Webhooks.Mercury)

	api := app.Group("/api/v1")
	session := middleware.SessionAuth(g.Sessions)

	setupAuthRoutes(api, h.Auth, session, orPass(g.ResetLimit))
	setupMerchantRoutes(api, h, session, g.Loader)
	setupAdminRoutes(api, h, g)
}

func authLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
				"code":  "RATE_LIMITED",
			})
		},
	})
}

func setupAuthRoutes(api fiber.Router, h *handlers.AuthHandler, session, resetLimit fiber.Handler) {
	auth := api.Group("/auth")
	auth.Post("/signup", authLimiter(), h.SignUp)
	auth.Post("/login", authLimiter(), h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Post("/forgot-password", resetLimit, h.ForgotPassword)
	auth.Post("/reset-password", session, h.ResetPassword)
}

func setupMerchantRoutes(api fiber.Router, h Handlers, session fiber.Handler, loader middleware.MerchantLoader) {
	// Profile and onboarding work before a merchant row exists.
	api.Get("/merchant/profile", session, h.Merchant.Profile)
	api.Put("/merchant/onboarding", session, h.Merchant.SaveOnboarding)

	merchant := api.Group("/merchant", session, middleware.RequireMerchant(loader))
	merchant.Get("/kyb", h.Merchant.KYB)
	merchant.Post("/kyb/documents", h.Merchant.UploadDocument)
	merchant.Post("/kyb/submit", h.Merchant.Submit)

	approved := merchant.Group("", middleware.RequireApproved())
	approved.Get("/dashboard", h.Dashboard.Merchant)

	approved.Get("/catalog", h.Catalog.MerchantCatalog)
	approved.Put("/catalog/:product_id", h.Catalog.SaveListing)
	approved.Get("/products/:id/coa", h.Catalog.COA)

	approved.Post("/orders", h.Orders.Create)
	approved.Get("/orders", h.Orders.ListMine)
	approved.Get("/orders/:id", h.Orders.GetMine)
	approved.Post("/orders/:id/cancel", h.Orders.CancelMine)

	approved.Get("/wallet", h.Wallet.GetWallet)
	approved.Get("/wallet/entries", h.Wallet.Entries)
	approved.Post("/wallet/topups", h.Wallet.TopUp)

	approved.Post("/withdrawals", h.Withdrawals.Request)
	approved.Get("/withdrawals", h.Withdrawals.ListMine)
	approved.Post("/withdrawals/:id/cancel", h.Withdrawals.CancelMine)

	approved.Get("/invoices", h.Invoices.ListMine)
}

func setupAdminRoutes(api fiber.Router, h Handlers, g Guards) {
	adminAuth := api.Group("/admin/auth")
	adminAuth.Post("/request-code", h.AdminAuth.RequestCode)
	adminAuth.Post("/verify-code", orPass(g.VerifyLimit), h.AdminAuth.VerifyCode)
	adminAuth.Post("/refresh", h.AdminAuth.Refresh)

	admin := api.Group("/admin", middleware.AdminAuth(g.Admins))
	admin.Post("/auth/logout", h.AdminAuth.Logout)
	admin.Get("/me", h.AdminAuth.Me)
	admin.Get("/dashboard", middleware.HasPermission(models.PermissionDashboardRead), h.Dashboard.Admin)

	team := admin.Group("/team")
	team.Get("/", middleware.HasPermission(models.PermissionTeamRead), h.Team.List)
	team.Post("/", middleware.HasPermission(models.PermissionTeamWrite), h.Team.Invite)
	team.Patch("/:id", middleware.HasPermission(models.PermissionTeamWrite), h.Team.Update)
	team.Delete("/:id", middleware.HasPermission(models.PermissionTeamWrite), h.Team.Disable)

	merchants := admin.Group("/merchants")
	merchants.Get("/", middleware.HasPermission(models.PermissionMerchantsRead), h.Admin.List)
	merchants.Get("/:id", middleware.HasPermission(models.PermissionMerchantsRead), h.Admin.Detail)
	merchants.Patch("/:id", middleware.HasPermission(models.PermissionMerchantsWrite), h.Admin.Update)
	merchants.Post("/:id/kyb/start-review", middleware.HasPermission(models.PermissionMerchantsReview), h.Admin.StartReview)
	merchants.Post("/:id/kyb/decision", middleware.HasPermission(models.PermissionMerchantsReview), h.Admin.Decide)
	merchants.Post("/:id/suspend", middleware.HasPermission(models.PermissionMerchantsWrite), h.Admin.Suspend)
	merchants.Post("/:id/reinstate", middleware.HasPermission(models.PermissionMerchantsWrite), h.Admin.Reinstate)
	merchants.Get("/:id/prices", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.MerchantPrices)
	merchants.Put("/:id/prices", middleware.HasPermission(models.PermissionPricingWrite), h.Catalog.SetMerchantPrices)
	merchants.Post("/:id/wallet/adjust", middleware.HasPermission(models.PermissionWalletsAdjust), h.Wallet.Adjust)
	merchants.Post("/:id/wallet/status", middleware.HasPermission(models.PermissionWalletsAdjust), h.Wallet.SetStatus)

	products := admin.Group("/products")
	products.Get("/", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.ListProducts)
	products.Post("/", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.CreateProduct)
	products.Get("/:id", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.GetProduct)
	products.Put("/:id", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.UpdateProduct)
	products.Delete("/:id", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.DeleteProduct)
	products.Post("/:id/inventory", middleware.HasPermission(models.PermissionInventoryWrite), h.Catalog.AdjustInventory)
	products.Get("/:id/inventory", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.ListAdjustments)
	products.Get("/:id/lots", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.ListLots)
	products.Post("/:id/lots", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.CreateLot)

	admin.Get("/inventory/low-stock", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.LowStock)
	admin.Post("/lots/:id/coa", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.UploadCOA)
	admin.Post("/lots/:id/release", middleware.HasPermission(models.PermissionCatalogWrite), h.Catalog.ReleaseLot)

	admin.Get("/pricing/tiers", middleware.HasPermission(models.PermissionCatalogRead), h.Catalog.ListTiers)
	admin.Put("/pricing/tiers/:name", middleware.HasPermission(models.PermissionPricingWrite), h.Catalog.SaveTier)

	orders := admin.Group("/orders")
	orders.Get("/", middleware.HasPermission(models.PermissionOrdersRead), h.Orders.List)
	orders.Get("/:id", middleware.HasPermission(models.PermissionOrdersRead), h.Orders.Get)
	orders.Post("/:id/status", middleware.HasPermission(models.PermissionOrdersWrite), h.Orders.UpdateStatus)
	orders.Post("/:id/cancel", middleware.HasPermission(models.PermissionOrdersWrite), h.Orders.Cancel)
	orders.Post("/:id/label", middleware.HasPermission(models.PermissionOrdersWrite), h.Orders.CreateLabel)
	orders.Get("/:id/label", middleware.HasPermission(models.PermissionOrdersRead), h.Orders.LabelURL)

	admin.Get("/wallets", middleware.HasPermission(models.PermissionWalletsRead), h.Wallet.ListWallets)

	withdrawals := admin.Group("/withdrawals")
	withdrawals.Get("/", middleware.HasPermission(models.PermissionWithdrawalsRead), h.Withdrawals.List)
	withdrawals.Get("/:id", middleware.HasPermission(models.PermissionWithdrawalsRead), h.Withdrawals.Get)
	withdrawals.Post("/:id/approve", middleware.HasPermission(models.PermissionWithdrawalsPay), h.Withdrawals.Approve)
	withdrawals.Post("/:id/reject", middleware.HasPermission(models.PermissionWithdrawalsPay), h.Withdrawals.Reject)
	withdrawals.Post("/:id/complete", middleware.HasPermission(models.PermissionWithdrawalsPay), h.Withdrawals.Complete)

	invoices := admin.Group("/mercury/invoices")
	invoices.Get("/", middleware.HasPermission(models.PermissionInvoicesRead), h.Invoices.List)
	invoices.Post("/", middleware.HasPermission(models.PermissionInvoicesWrite), h.Invoices.Create)
	invoices.Get("/:id", middleware.HasPermission(models.PermissionInvoicesRead), h.Invoices.Get)
	invoices.Post("/:id/sync", middleware.HasPermission(models.PermissionInvoicesWrite), h.Invoices.Sync)
	invoices.Post("/:id/cancel", middleware.HasPermission(models.PermissionInvoicesWrite), h.Invoices.Cancel)
}
